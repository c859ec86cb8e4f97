package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const extractTimeout = 30 * time.Second

var (
	// ErrNoExtractor means pdftotext is not installed.
	ErrNoExtractor = errors.New("pdftotext not found in PATH")
	ErrNoText      = errors.New("pdf has no extractable text")

	blankRuns = regexp.MustCompile(`\n{3,}`)
)

// Extract converts a PDF to plain UTF-8 text with pdftotext.
func Extract(ctx context.Context, input []byte) (string, error) {
	return extractWith(ctx, "pdftotext", input)
}

func extractWith(ctx context.Context, bin string, input []byte) (string, error) {
	path, err := exec.LookPath(bin)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoExtractor, err)
	}

	tmpDir, err := os.MkdirTemp("", "pdfextract-")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	pdfPath := filepath.Join(tmpDir, "input.pdf")
	if err := os.WriteFile(pdfPath, input, 0o600); err != nil {
		return "", fmt.Errorf("failed to write temp PDF: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, extractTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, path, "-enc", "UTF-8", "-eol", "unix", "-nopgbrk", "-q", pdfPath, "-")
	cmd.Env = append(os.Environ(), "LANG=C.UTF-8", "LC_ALL=C.UTF-8")

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "", fmt.Errorf("pdftotext timed out: %w", ctx.Err())
	}
	if err != nil {
		return "", fmt.Errorf("pdftotext failed: %w: %s", err, bytes.TrimSpace(stderr.Bytes()))
	}

	text := normalize(string(out))
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

// normalize trims the output and collapses runs of blank lines.
func normalize(text string) string {
	text = strings.ReplaceAll(text, "\f", "\n")
	text = strings.TrimSpace(text)
	return blankRuns.ReplaceAllString(text, "\n\n")
}
