package commands

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"voice-ordering-service/internal/catalog"
	"voice-ordering-service/internal/service/intent"
)

func wavHeader(format uint16, channels uint16, rate uint32, bits uint16) []byte {
	h := make([]byte, wavHeaderSize)
	copy(h[0:4], "RIFF")
	copy(h[8:12], "WAVE")
	copy(h[12:16], "fmt ")
	binary.LittleEndian.PutUint16(h[20:22], format)
	binary.LittleEndian.PutUint16(h[22:24], channels)
	binary.LittleEndian.PutUint32(h[24:28], rate)
	binary.LittleEndian.PutUint16(h[34:36], bits)
	copy(h[36:40], "data")
	return h
}

func TestReadWAVHeader(t *testing.T) {
	f, err := readWAVHeader(bytes.NewReader(wavHeader(1, 1, 8000, 16)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.SampleRate != 8000 || f.Channels != 1 || f.BitsPerSample != 16 {
		t.Errorf("unexpected format %+v", f)
	}
	if f.bytesPerSecond() != 16000 {
		t.Errorf("expected 16000 bytes/s, got %d", f.bytesPerSecond())
	}
}

func TestReadWAVHeader_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{"short", []byte("RIFF")},
		{"not riff", append([]byte("JUNK"), make([]byte, 40)...)},
		{"not pcm", wavHeader(3, 1, 8000, 32)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := readWAVHeader(bytes.NewReader(tt.input)); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := readWAVHeader(bytes.NewReader(append([]byte("JUNK"), make([]byte, 40)...))); !errors.Is(err, errNotWAV) {
		t.Errorf("expected errNotWAV, got %v", err)
	}
}

func TestPrintIntents(t *testing.T) {
	r := intent.NewResolver(catalog.Default(), intent.Options{})
	intents, conf := r.Resolve("I want two chocolate corn", 0.92)

	var table bytes.Buffer
	if err := printIntents(&table, intents, conf, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(table.String(), "choco-corn") || !strings.Contains(table.String(), "0.92") {
		t.Errorf("unexpected table output:\n%s", table.String())
	}

	var js bytes.Buffer
	printIntents(&js, intents, conf, true)
	if !strings.Contains(js.String(), `"itemId": "choco-corn"`) || !strings.Contains(js.String(), `"quantity": 2`) {
		t.Errorf("unexpected JSON output:\n%s", js.String())
	}

	var none bytes.Buffer
	printIntents(&none, nil, 0.4, false)
	if !strings.Contains(none.String(), "no menu item") {
		t.Errorf("expected no-match message, got %q", none.String())
	}
}

func TestConsole_OrdersTypedUtterance(t *testing.T) {
	t.Setenv("ORDER_SETTLE_DELAY", "10ms")
	t.Setenv("KAFKA_ENABLED", "false")
	t.Setenv("MENU_FILE", "")

	in := strings.NewReader("I want two chocolate corn\n:cart\n:quit\n")
	var out bytes.Buffer

	if err := runConsole(context.Background(), in, &out); err != nil {
		t.Fatalf("runConsole: %v", err)
	}

	got := out.String()
	for _, want := range []string{"[LISTENING]", "[SUCCESS] 2x choco-corn", "Adding two Chocolate Corn Delight", "total"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, got)
		}
	}
}
