package push

import (
	"testing"

	"github.com/avtopazar/avtochat/internal/inbox"
)

func TestDecode(t *testing.T) {
	raw := []byte(`{"title":"Ново съобщение","body":"Иван: здравей","type":"message","data":{"senderId":"u1"},"timestamp":1700000000000}`)

	n, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	if n.Title != "Ново съобщение" {
		t.Errorf("title = %q", n.Title)
	}
	if n.Type != inbox.TypeMessage {
		t.Errorf("type = %q, want message", n.Type)
	}
	if n.Data["senderId"] != "u1" {
		t.Errorf("data = %v", n.Data)
	}
	if n.Timestamp != 1700000000000 {
		t.Errorf("timestamp = %d", n.Timestamp)
	}
}

func TestDecodeUnknownTypeFallsBackToSystem(t *testing.T) {
	n, err := Decode([]byte(`{"title":"t","body":"b","type":"bogus"}`))
	if err != nil {
		t.Fatal(err)
	}
	if n.Type != inbox.TypeSystem {
		t.Errorf("type = %q, want system", n.Type)
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"invalid json", `{"title":`},
		{"empty payload", `{}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Decode([]byte(tc.raw)); err == nil {
				t.Error("expected error")
			}
		})
	}
}
