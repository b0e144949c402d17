// Package main is the entry point for the moderation engine load test binary.
// It provides subcommands for different load testing scenarios:
//
//   - flood:     Clean-message throughput test
//   - spam:      Media flood bursts measuring rule trigger latency
//   - profanity: Content filter bursts measuring ban latency
//
// Every scenario publishes synthetic platform events on the engine's NATS
// event subject and serves the action subject as a fake gateway, so a single
// engine process plus a NATS server is a complete test bed.
//
// Usage:
//
//	loadtest <command> [options]
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "flood":
		runFlood(os.Args[2:])
	case "spam":
		runSpam(os.Args[2:])
	case "profanity":
		runProfanity(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: loadtest <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  flood       Clean-message throughput test — publishes harmless events at a fixed rate")
	fmt.Println("  spam        Media flood test — sticker bursts that must trip the media window")
	fmt.Println("  profanity   Content filter test — filtered phrases that must draw a ban")
	fmt.Println()
	fmt.Println("Run 'loadtest <command> -h' for command-specific options.")
}
