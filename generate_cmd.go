package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/huh"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/dgnsrekt/aistudio/internal/job"
	"github.com/dgnsrekt/aistudio/internal/llm"
	"github.com/dgnsrekt/aistudio/internal/settings"
	"github.com/dgnsrekt/aistudio/internal/worker"
)

var (
	genMode        string
	genName        string
	genModel       string
	genVoice       string
	genInstruction string
	genFile        string
	genOutput      string
	genClipboard   bool
	genPrint       bool

	generateCmd = &cobra.Command{
		Use:   "generate [TEXT]",
		Short: "Process one job and exit",
		Long: paragraph(fmt.Sprintf("\n%s one job in the foreground. Text comes from the arguments, --file, --clipboard or stdin; without any of them an interactive form is shown.", keyword("Generate"))),
		Example: paragraph(`aistudio generate --mode story --name "The Lighthouse" "Write a ghost story set in a lighthouse"
cat chapter.md | aistudio generate --mode rewrite --instruction "Make it funnier"
aistudio generate --clipboard --print`),
		Args: cobra.ArbitraryArgs,
		RunE: runGenerate,
	}
)

func init() {
	f := generateCmd.Flags()
	f.StringVar(&genMode, "mode", "", "story or rewrite (default: last used)")
	f.StringVarP(&genName, "name", "n", "", "target name for the output files")
	f.StringVarP(&genModel, "model", "m", "", "LLM model (default: last used)")
	f.StringVarP(&genVoice, "voice", "v", "", "voice label or provider|id (default: last used)")
	f.StringVarP(&genInstruction, "instruction", "i", "", "rewrite instruction")
	f.StringVarP(&genFile, "file", "f", "", "read the text from a file")
	f.StringVarP(&genOutput, "output", "o", "", "output folder, remembered for later runs (default: last used)")
	f.BoolVarP(&genClipboard, "clipboard", "c", false, "read the text from the clipboard")
	f.BoolVarP(&genPrint, "print", "p", false, "render the produced text when done")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	saved, err := a.settings.Load()
	if err != nil {
		return err
	}

	text, err := readGenerateText(args)
	if err != nil {
		return err
	}

	sub := submission{
		Mode:        firstSet(genMode, saved.Mode),
		Name:        firstSet(genName, saved.LastFilename),
		Model:       firstSet(genModel, saved.Model),
		Voice:       firstSet(genVoice, saved.Voice),
		Instruction: firstSet(genInstruction, saved.Instruction),
		Text:        text,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if strings.TrimSpace(sub.Text) == "" {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return job.ErrEmptySource
		}
		a.refreshVoices(ctx)
		if err := sub.ask(a.catalog.Labels()); err != nil {
			return err
		}
	}

	mode, err := job.ParseMode(sub.Mode)
	if err != nil {
		return err
	}
	j, err := job.New(mode, sub.Text, sub.Name, job.Options{
		Instruction: sub.Instruction,
		Model:       sub.Model,
		Voice:       sub.Voice,
		OutputDir:   firstSet(genOutput, a.outputDir(saved)),
	})
	if err != nil {
		return err
	}

	if _, err := a.settings.Update(func(st *settings.Settings) {
		st.Mode = mode.String()
		st.Model = sub.Model
		st.Voice = sub.Voice
		st.Instruction = sub.Instruction
		st.LastFilename = sub.Name
		if genOutput != "" {
			st.DownloadPath = genOutput
		}
	}); err != nil {
		fmt.Fprintln(os.Stderr, faint("could not save settings: "+err.Error()))
	}

	events, cancel := a.worker.Hub().Subscribe(64)
	defer cancel()
	go printEvents(os.Stderr, events, j.ID)

	var res job.Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.worker.Run(gctx) })
	g.Go(func() error {
		defer func() { _ = a.worker.Queue().Close() }()
		var err error
		res, err = a.worker.SubmitAndWait(gctx, j)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "%s %s (%s)\n", keyword("Saved"), res.AudioPath, humanize.Bytes(uint64(res.AudioBytes))) //nolint:gosec
	if res.TextPath != "" {
		fmt.Fprintf(os.Stderr, "%s %s\n", keyword("Text"), res.TextPath)
	}
	if genPrint && res.TextPath != "" {
		return printText(os.Stdout, res.TextPath)
	}
	return nil
}

func readGenerateText(args []string) (string, error) {
	switch {
	case len(args) > 0:
		return strings.Join(args, " "), nil
	case genFile != "":
		b, err := os.ReadFile(genFile)
		if err != nil {
			return "", fmt.Errorf("unable to read file: %w", err)
		}
		return string(b), nil
	case genClipboard:
		s, err := clipboard.ReadAll()
		if err != nil {
			return "", fmt.Errorf("unable to read clipboard: %w", err)
		}
		return s, nil
	}

	if yes, err := stdinIsPipe(); err != nil {
		return "", err
	} else if yes {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("unable to read from stdin: %w", err)
		}
		return string(b), nil
	}
	return "", nil
}

func stdinIsPipe() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, fmt.Errorf("unable to open file: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}

// submission is the editable set of job fields.
type submission struct {
	Mode        string
	Name        string
	Model       string
	Voice       string
	Instruction string
	Text        string
}

// ask fills the submission interactively.
func (s *submission) ask(voices []string) error {
	if _, err := job.ParseMode(s.Mode); err != nil || s.Mode == "" {
		s.Mode = job.ModeStoryLoop.String()
	}
	modelOpts := huh.NewOptions(llm.ModelLabels()...)
	voiceOpts := huh.NewOptions(voices...)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Mode").
				Options(
					huh.NewOption("Story (keep asking until the end)", job.ModeStoryLoop.String()),
					huh.NewOption("Rewrite (single pass)", job.ModeRewrite.String()),
				).
				Value(&s.Mode),
			huh.NewInput().
				Title("Name").
				Placeholder("audio").
				Value(&s.Name),
			huh.NewSelect[string]().
				Title("Model").
				Options(modelOpts...).
				Value(&s.Model),
			huh.NewSelect[string]().
				Title("Voice").
				Options(voiceOpts...).
				Height(8).
				Value(&s.Voice),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Instruction").
				Placeholder("Rewrite this text.").
				Value(&s.Instruction),
			huh.NewText().
				Title("Text").
				Lines(10).
				Validate(func(v string) error {
					if strings.TrimSpace(v) == "" {
						return errors.New("text is required")
					}
					return nil
				}).
				Value(&s.Text),
		),
	).WithShowHelp(true)
	return form.Run()
}

// printEvents writes progress for one job until it finishes.
func printEvents(w io.Writer, events <-chan worker.Event, id string) {
	for e := range events {
		if e.JobID != id {
			continue
		}
		switch e.Type {
		case worker.EventFailed:
			fmt.Fprintln(w, failure("failed: "+e.Error))
			return
		case worker.EventSucceeded:
			return
		default:
			fmt.Fprintln(w, faint(e.Message))
		}
	}
}

func printText(w io.Writer, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("unable to read file: %w", err)
	}

	style := styles.AutoStyle
	width := 80
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		style = styles.NoTTYStyle
	} else if tw, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && tw < 120 {
		width = tw
	} else if err == nil {
		width = 120
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
		glamour.WithPreservedNewLines(),
	)
	if err != nil {
		return fmt.Errorf("unable to create renderer: %w", err)
	}
	out, err := r.Render(string(b))
	if err != nil {
		return fmt.Errorf("unable to render markdown: %w", err)
	}
	_, err = fmt.Fprint(w, out)
	return err
}

func firstSet(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

