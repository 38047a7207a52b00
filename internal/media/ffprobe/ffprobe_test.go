package ffprobe

import (
	"context"
	"errors"
	"math"
	"slices"
	"testing"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video"},
			{CodecType: "audio"},
		},
		Format: Format{
			Duration: "123.45",
			Size:     "1000",
		},
	}
	if !result.HasVideo() || !result.HasAudio() {
		t.Fatal("expected video and audio streams")
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{Format: Format{Duration: "bad", Size: "-1"}}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected duration NaN, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
}

func TestDurationFallsBackToStreams(t *testing.T) {
	result := Result{
		Streams: []Stream{{CodecType: "audio", Duration: "41.2"}, {CodecType: "video", Duration: "40.0"}},
		Format:  Format{Duration: "N/A"},
	}
	if result.DurationSeconds() != 41.2 {
		t.Fatalf("expected longest stream duration, got %v", result.DurationSeconds())
	}
}

func TestInspectWithDecodesOutput(t *testing.T) {
	var gotArgs []string
	run := func(_ context.Context, binary string, args ...string) ([]byte, error) {
		if binary != "ffprobe" {
			t.Fatalf("unexpected binary %q", binary)
		}
		gotArgs = args
		return []byte(`{"streams":[{"index":0,"codec_type":"video","height":720}],"format":{"duration":"30.5","size":"2048"}}`), nil
	}
	result, err := InspectWith(context.Background(), run, "", "/tmp/clip.mp4")
	if err != nil {
		t.Fatalf("InspectWith returned error: %v", err)
	}
	if result.DurationSeconds() != 30.5 || result.SizeBytes() != 2048 {
		t.Fatalf("unexpected result %+v", result)
	}
	if gotArgs[len(gotArgs)-1] != "/tmp/clip.mp4" || !slices.Contains(gotArgs, "-show_format") {
		t.Fatalf("unexpected args %v", gotArgs)
	}
}

func TestInspectWithErrors(t *testing.T) {
	if _, err := InspectWith(context.Background(), nil, "ffprobe", " "); err == nil {
		t.Fatal("expected empty path error")
	}
	failing := func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("exit status 1")
	}
	if _, err := InspectWith(context.Background(), failing, "ffprobe", "x.mp4"); err == nil {
		t.Fatal("expected runner error")
	}
	garbage := func(context.Context, string, ...string) ([]byte, error) {
		return []byte("not json"), nil
	}
	if _, err := InspectWith(context.Background(), garbage, "ffprobe", "x.mp4"); err == nil {
		t.Fatal("expected parse error")
	}
}
