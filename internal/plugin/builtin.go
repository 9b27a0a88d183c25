package plugin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"os"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"

	"appletree/internal/render"
	"appletree/internal/shellwords"
)

const (
	timestampName  = "timestamp"
	wordcountName  = "wordcount"
	screenshotName = "screenshot"
)

type timestamp struct {
	host Host
}

func newTimestamp() Plugin { return &timestamp{} }

func (p *timestamp) Name() string         { return timestampName }
func (p *timestamp) FriendlyName() string { return "Insert timestamp" }

// format is a Go time layout.
func (p *timestamp) Defaults() map[string]string {
	return map[string]string{"format": "2006-01-02 15:04"}
}

func (p *timestamp) Init(h Host) error {
	p.host = h
	if strings.TrimSpace(h.Config.Get("format")) == "" {
		return errors.New("timestamp: empty format")
	}
	return nil
}

func (p *timestamp) ToolbarActions(scope Scope, _ Target) []Action {
	if scope != ScopeEditor {
		return nil
	}
	return []Action{{
		Name:        "insert",
		Description: "Insert the current date and time",
		Shortcut:    "ctrl+alt+d",
		Run: func(_ context.Context, t Target) (string, error) {
			s := p.host.Now().Format(p.host.Config.Get("format"))
			if err := InsertText(t, s); err != nil {
				return "", err
			}
			return "Inserted " + s, nil
		},
	}}
}

type wordcount struct{}

func newWordcount() Plugin { return wordcount{} }

func (wordcount) Name() string                { return wordcountName }
func (wordcount) FriendlyName() string        { return "Word count" }
func (wordcount) Defaults() map[string]string { return map[string]string{} }
func (wordcount) Init(Host) error             { return nil }

func (wordcount) ToolbarActions(scope Scope, _ Target) []Action {
	if scope != ScopeEditor {
		return nil
	}
	return []Action{{
		Name:        "count",
		Description: "Count words and characters",
		Run: func(_ context.Context, t Target) (string, error) {
			if t.Surface == nil {
				return "", ErrNoEditor
			}
			words, chars := Count(docType(t), t.Surface.Body())
			return fmt.Sprintf("%d words, %d characters", words, chars), nil
		},
	}}
}

// Count returns words and characters of the document's visible text.
func Count(docType, body string) (words, chars int) {
	text := render.Text(docType, body)
	return len(strings.Fields(text)), utf8.RuneCountInString(strings.TrimSpace(text))
}

// screenshot runs an external capture tool and stores the result as a document image.
type screenshot struct {
	host Host
}

func newScreenshot() Plugin { return &screenshot{} }

func (p *screenshot) Name() string         { return screenshotName }
func (p *screenshot) FriendlyName() string { return "Screenshot" }

// screenshot_exec is a command line; {tempfilename} is replaced by the PNG path to write.
func (p *screenshot) Defaults() map[string]string {
	return map[string]string{
		"screenshot_exec": "spectacle -r -b -d 5000 -n -o {tempfilename}",
		"timeout_seconds": "60",
	}
}

func (p *screenshot) Init(h Host) error {
	p.host = h
	return nil
}

func (p *screenshot) ToolbarActions(scope Scope, t Target) []Action {
	if scope != ScopeEditor || !hasImages(t) {
		return nil
	}
	return []Action{{
		Name:        "capture",
		Description: "Insert screenshot",
		Shortcut:    "ctrl+alt+s",
		Run:         p.capture,
	}}
}

func (p *screenshot) capture(ctx context.Context, t Target) (string, error) {
	if t.Surface == nil || t.Docs == nil {
		return "", ErrNoEditor
	}
	cmdline := strings.TrimSpace(p.host.Config.Get("screenshot_exec"))
	if cmdline == "" {
		return "", errors.New("screenshot tool is not configured")
	}

	f, err := os.CreateTemp("", "appletree-screenshot-*.png")
	if err != nil {
		return "", err
	}
	tmp := f.Name()
	_ = f.Close()
	defer func() { _ = os.Remove(tmp) }()

	args := shellwords.Expand(cmdline, map[string]string{"tempfilename": tmp})
	if len(args) == 0 {
		return "", errors.New("screenshot tool is not configured")
	}
	if n := p.host.Config.Int("timeout_seconds"); n > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(n)*time.Second)
		defer cancel()
	}
	out, err := exec.CommandContext(ctx, args[0], args[1:]...).CombinedOutput()
	if err != nil {
		p.host.Log.Error("screenshot tool failed", "cmd", args[0], "error", err, "output", strings.TrimSpace(string(out)))
		return "", fmt.Errorf("screenshot: %w", err)
	}

	data, err := os.ReadFile(tmp)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "Screenshot cancelled", nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrImageFormat, err)
	}
	name, err := t.Docs.PutImage(t.DocID, "file://"+tmp, img)
	if err != nil {
		return "", err
	}
	if err := InsertImage(t, name, "screenshot"); err != nil {
		return "", err
	}
	return "Inserted screenshot " + name, nil
}
