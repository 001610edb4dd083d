/*
 * KubeSentinel - Autonomous Kubernetes Remediation Agent
 * Copyright (c) 2025 Edilson Freitas
 * License: MIT
 */
package utils

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const defaultMaxLogSize = 50 // MB

// InitializeLogger builds the application logger from environment variables:
// LOG_LEVEL selects the level, ENV=prod switches to JSON output and
// file-only logging, LOG_FILE and LOG_MAX_SIZE control rotation.
func InitializeLogger() (*zap.Logger, error) {
	logLevelEnv := strings.ToLower(os.Getenv("LOG_LEVEL"))
	var level zapcore.Level
	switch logLevelEnv {
	case "debug":
		level = zap.DebugLevel
	case "info":
		level = zap.InfoLevel
	case "warn":
		level = zap.WarnLevel
	case "error":
		level = zap.ErrorLevel
	case "dpanic":
		level = zap.DPanicLevel
	case "panic":
		level = zap.PanicLevel
	case "fatal":
		level = zap.FatalLevel
	default:
		level = zap.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	env := strings.ToLower(os.Getenv("ENV"))
	var encoder zapcore.Encoder
	if env == "prod" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	logFile := os.Getenv("LOG_FILE")
	if logFile == "" {
		logFile = "kubesentinel.log"
	}

	lumberjackLogger := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    getMaxLogSizeFromEnv(),
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}

	var writeSyncer zapcore.WriteSyncer
	if env == "prod" {
		writeSyncer = zapcore.AddSync(lumberjackLogger)
	} else {
		writeSyncer = zapcore.NewMultiWriteSyncer(zapcore.AddSync(os.Stdout), zapcore.AddSync(lumberjackLogger))
	}

	core := zapcore.NewCore(encoder, writeSyncer, level)
	logger := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))

	return logger, nil
}

// getMaxLogSizeFromEnv reads LOG_MAX_SIZE ("50MB", "100KB", "1GB") and
// returns the rotation ceiling in megabytes.
func getMaxLogSizeFromEnv() int {
	envValue := os.Getenv("LOG_MAX_SIZE")
	if envValue != "" {
		size, err := parseSize(envValue)
		if err == nil && size > 0 {
			return int(size / (1024 * 1024))
		}
	}
	return defaultMaxLogSize
}

// parseSize converts a human-readable size string into bytes.
func parseSize(sizeStr string) (int64, error) {
	sizeStr = strings.TrimSpace(sizeStr)
	unit := "B"
	var multiplier int64 = 1

	if strings.HasSuffix(sizeStr, "KB") {
		unit = "KB"
		multiplier = 1024
	} else if strings.HasSuffix(sizeStr, "MB") {
		unit = "MB"
		multiplier = 1024 * 1024
	} else if strings.HasSuffix(sizeStr, "GB") {
		unit = "GB"
		multiplier = 1024 * 1024 * 1024
	}

	sizeStr = strings.TrimSuffix(sizeStr, unit)
	sizeStr = strings.TrimSpace(sizeStr)

	size, err := strconv.ParseInt(sizeStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size: %s", sizeStr)
	}

	return size * multiplier, nil
}
