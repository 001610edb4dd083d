/*
 * KubeSentinel - Autonomous Kubernetes Remediation Agent
 * Copyright (c) 2025 Edilson Freitas
 * License: MIT
 */
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/diillson/kubesentinel/cmd"
	"github.com/diillson/kubesentinel/utils"
	"github.com/diillson/kubesentinel/version"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, continuing without it")
	}

	logger, err := utils.InitializeLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	// Masked dump for support bundles; only visible at debug level.
	logger.Debug("Environment", zap.String("vars", utils.GetEnvVariables()))

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch os.Args[1] {
	case "remediate":
		if err := cmd.RunRemediate(ctx, os.Args[2:], logger); err != nil {
			logger.Error("Remediate failed", zap.Error(err))
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "watch":
		if err := cmd.RunWatch(ctx, os.Args[2:], logger); err != nil {
			logger.Error("Watch failed", zap.Error(err))
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "version", "--version", "-v":
		fmt.Print(version.FormatVersionInfo(version.GetCurrentVersion(), true))
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`KubeSentinel - Autonomous Kubernetes Remediation Agent

Usage:
  kubesentinel <command> [flags]

Commands:
  remediate   Run one remediation incident for a deployment
  watch       Continuously watch a deployment and remediate on failure
  version     Show version information
  help        Show this help

Run 'kubesentinel <command> --help' for command-specific flags.`)
}
