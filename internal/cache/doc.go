// Package cache stores synthesized audio so identical requests are not sent
// to a speech provider twice. An in-memory LRU (L1) sits in front of a
// zstd-compressed disk store (L2) that survives restarts and is cleaned up
// by age and size.
package cache
