package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/mattn/go-isatty"

	"devourer/internal/pipeline"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"

	summaryLabelWidth = 12
)

func printRunSummary(out io.Writer, summary pipeline.Summary) {
	colorize := shouldColorize(out)

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Run summary")
	writeSummaryLine(out, "Processed", strconv.Itoa(summary.Processed), statusOK, colorize)
	writeSummaryLine(out, "Skipped", strconv.Itoa(summary.Skipped), statusInfo, colorize)

	failedKind := statusOK
	if summary.Failed > 0 {
		failedKind = statusError
	}
	writeSummaryLine(out, "Failed", strconv.Itoa(summary.Failed), failedKind, colorize)

	warnKind := statusInfo
	if summary.Warnings > 0 {
		warnKind = statusWarn
	}
	writeSummaryLine(out, "Warnings", strconv.Itoa(summary.Warnings), warnKind, colorize)
	writeSummaryLine(out, "Duration", roundedDuration(summary.Duration), statusInfo, colorize)
}

func roundedDuration(d time.Duration) string {
	if d >= time.Second {
		return d.Round(time.Second).String()
	}
	return d.Round(time.Millisecond).String()
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func writeSummaryLine(out io.Writer, label, value string, kind statusKind, colorize bool) {
	line := fmt.Sprintf("  %-*s %s", summaryLabelWidth, label+":", value)
	if colorize {
		if color := summaryColor(kind); color != "" {
			line = color + line + ansiReset
		}
	}
	fmt.Fprintln(out, line)
}

func summaryColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	default:
		return ""
	}
}
