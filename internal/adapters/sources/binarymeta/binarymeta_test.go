package binarymeta

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"testing"
)

func frame(kv string) []byte {
	enc := base64.StdEncoding.EncodeToString([]byte(kv))
	var buf bytes.Buffer
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(enc)))
	buf.Write(lenBuf[:])
	buf.WriteString(enc)
	return buf.Bytes()
}

func TestDecodeFrames_ParsesMultipleFrames(t *testing.T) {
	var raw []byte
	raw = append(raw, frame("carrier=AA\nflight=100")...)
	raw = append(raw, frame("carrier=DL\nflight=200")...)

	msgs, err := decodeFrames(raw)
	if err != nil {
		t.Fatalf("decodeFrames: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(msgs))
	}
	if msgs[0]["carrier"] != "AA" || msgs[1]["carrier"] != "DL" {
		t.Fatalf("unexpected decoded frames: %+v", msgs)
	}
}

func TestDecodeFrames_TruncatedHeaderErrors(t *testing.T) {
	if _, err := decodeFrames([]byte{0x00, 0x01}); err == nil {
		t.Fatal("expected an error for a truncated frame header")
	}
}

func TestParseKVFrame_RejectsEmptyFrame(t *testing.T) {
	if _, err := parseKVFrame([]byte("")); err == nil {
		t.Fatal("expected an error for a frame with no key=value pairs")
	}
}
