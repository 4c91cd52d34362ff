package ui

// Config contains TUI-specific configuration.
type Config struct {
	GlamourMaxWidth uint
	GlamourStyle    string `env:"GLAMOUR_STYLE" envDefault:"auto"`
	EnableMouse     bool

	// Choices offered in the form.
	Models []string
	Voices []string

	// Remembered choices used to prefill the form.
	Mode         string
	Model        string
	Voice        string
	Instruction  string
	LastFilename string

	// OutputDir is where submitted jobs write; it is shown in the header.
	OutputDir string

	// For debugging the UI
	GlamourEnabled bool `env:"AISTUDIO_ENABLE_GLAMOUR" envDefault:"true"`
}
