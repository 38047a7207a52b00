package delivery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"clipper/internal/fileutil"
)

// DirTransport writes media into a directory instead of a chat. Text is
// printed through the optional Printf.
type DirTransport struct {
	Dir    string
	Printf func(format string, args ...any)
	// Written lists the files produced, in send order.
	Written []string
}

// SendText forwards text to Printf.
func (d *DirTransport) SendText(_ context.Context, _ int64, text string) error {
	if d.Printf != nil {
		d.Printf("%s\n", text)
	}
	return nil
}

// SendMedia copies the part into Dir under its upload file name.
func (d *DirTransport) SendMedia(ctx context.Context, _ int64, media Media) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return &SendError{Kind: Other, Detail: "create output dir", Err: err}
	}
	name := media.FileName
	if name == "" {
		name = filepath.Base(media.Path)
	}
	dst := filepath.Join(d.Dir, name)
	if err := fileutil.CopyFileVerified(media.Path, dst); err != nil {
		return &SendError{Kind: Other, Detail: fmt.Sprintf("copy part %d", media.Ordinal), Err: err}
	}
	d.Written = append(d.Written, dst)
	return nil
}
