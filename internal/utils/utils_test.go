package utils

import (
	"bufio"
	"bytes"
	"reflect"
	"testing"
)

func TestSplitJpeg(t *testing.T) {
	// Construct a stream containing: [Garbage] [JPEG] [Garbage]
	// SOI (Start of Image): FF D8
	// EOI (End of Image):   FF D9

	jpegData := []byte{0xFF, 0xD8, 0x01, 0x02, 0x03, 0xFF, 0xD9}

	streamData := []byte{0x00, 0x00} // Garbage at start
	streamData = append(streamData, jpegData...)
	streamData = append(streamData, []byte{0x00, 0x00}...) // Garbage at end

	// Use bufio.Scanner with our custom Split function
	scanner := bufio.NewScanner(bytes.NewReader(streamData))
	scanner.Split(SplitJpeg)

	// Scan() should skip the first garbage bytes and find the JPEG
	if !scanner.Scan() {
		t.Fatal("Expected to find a token, got EOF")
	}

	// Verify the extracted token is exactly the JPEG
	if !bytes.Equal(scanner.Bytes(), jpegData) {
		t.Errorf("Expected %X, got %X", jpegData, scanner.Bytes())
	}

	// Scan() again should return false (EOF) because the trailing garbage is not a JPEG
	if scanner.Scan() {
		t.Error("Expected only one token, found more")
	}
}

func TestSplitJpegBackToBack(t *testing.T) {
	a := []byte{0xFF, 0xD8, 0xAA, 0xFF, 0xD9}
	b := []byte{0xFF, 0xD8, 0xBB, 0xBB, 0xFF, 0xD9}

	scanner := bufio.NewScanner(bytes.NewReader(append(append([]byte{}, a...), b...)))
	scanner.Split(SplitJpeg)

	var got [][]byte
	for scanner.Scan() {
		got = append(got, append([]byte(nil), scanner.Bytes()...))
	}
	if len(got) != 2 || !bytes.Equal(got[0], a) || !bytes.Equal(got[1], b) {
		t.Errorf("Expected two frames %X %X, got %X", a, b, got)
	}
}

func TestCaptureArgs(t *testing.T) {
	tests := []struct {
		name string
		in   CaptureArgs
		want []string
	}{
		{
			name: "Linux webcam",
			in:   CaptureArgs{Device: "/dev/video0", Format: "v4l2", FPS: 4},
			want: []string{"-hide_banner", "-loglevel", "error", "-f", "v4l2", "-i", "/dev/video0", "-vf", "fps=4", "-f", "image2pipe", "-vcodec", "mjpeg", "-"},
		},
		{
			name: "Recorded file in real time",
			in:   CaptureArgs{Device: "clip.mp4", Realtime: true},
			want: []string{"-hide_banner", "-loglevel", "error", "-re", "-i", "clip.mp4", "-f", "image2pipe", "-vcodec", "mjpeg", "-"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Args(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Args() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewCaptureCmdCapturesStderr(t *testing.T) {
	c := NewCaptureCmd(CaptureArgs{Device: "/dev/video0"})
	if c.Cmd.Stderr != c.Stderr {
		t.Error("Expected stderr to be wired to the capture buffer")
	}
	if c.Args[0] != "ffmpeg" {
		t.Errorf("Expected ffmpeg binary, got %q", c.Args[0])
	}
}
