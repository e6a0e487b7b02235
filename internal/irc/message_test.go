package irc

import (
	"reflect"
	"testing"
)

func TestSourceNick(t *testing.T) {
	tests := []struct {
		input  Message
		output string
	}{
		{Message{}, ""},
		{Message{Prefix: "hi!~hello@hey"}, "hi"},
		{Message{Prefix: "hi"}, "hi"},
	}

	for _, test := range tests {
		got := test.input.SourceNick()
		if got != test.output {
			t.Errorf("%+v.SourceNick() = %s, wanted %s", test.input, got, test.output)
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		input   string
		prefix  string
		command string
		params  []string
	}{
		{"PRIVMSG #chat :hi there", "", "PRIVMSG", []string{"#chat", "hi there"}},
		{":alice!alice@host PRIVMSG #chat :hi there", "alice!alice@host", "PRIVMSG", []string{"#chat", "hi there"}},
		{"NICK alice", "", "NICK", []string{"alice"}},
		{"JOIN #a,#b", "", "JOIN", []string{"#a,#b"}},
		{"MODE #chat +k secret", "", "MODE", []string{"#chat", "+k", "secret"}},

		// Mid-message ':' starts a trailing parameter even with embedded spaces.
		{"TOPIC #chat :hello : world", "", "TOPIC", []string{"#chat", "hello : world"}},

		// A leading '@' tag is dropped entirely.
		{"@time=123 PRIVMSG #chat :hi", "", "PRIVMSG", []string{"#chat", "hi"}},

		// Tag AND source prefix together.
		{"@time=123 :alice!a@h PRIVMSG #chat :hi", "alice!a@h", "PRIVMSG", []string{"#chat", "hi"}},

		// A lone command with no parameters.
		{"QUIT", "", "QUIT", nil},

		// Runs of spaces between parts are skipped.
		{"NICK   alice", "", "NICK", []string{"alice"}},

		// A ':' leading the token right after the command starts a
		// trailing parameter; the colon itself is stripped.
		{"PING :tok", "", "PING", []string{"tok"}},
	}

	for _, test := range tests {
		got, err := Parse(test.input)
		if err != nil {
			t.Errorf("Parse(%q) returned error: %s", test.input, err)
			continue
		}
		if got.Prefix != test.prefix {
			t.Errorf("Parse(%q).Prefix = %q, wanted %q", test.input, got.Prefix, test.prefix)
		}
		if got.Command != test.command {
			t.Errorf("Parse(%q).Command = %q, wanted %q", test.input, got.Command, test.command)
		}
		if !reflect.DeepEqual(got.Params, test.params) && !(len(got.Params) == 0 && len(test.params) == 0) {
			t.Errorf("Parse(%q).Params = %q, wanted %q", test.input, got.Params, test.params)
		}
	}
}

func TestParseTooManyParts(t *testing.T) {
	// 15 space-separated tokens after the command pushes total parts past
	// MaxParts.
	line := "PRIVMSG a b c d e f g h i j k l m n o"
	_, err := Parse(line)
	if err != ErrTooManyParts {
		t.Fatalf("Parse(%q) error = %v, wanted ErrTooManyParts", line, err)
	}
}

func TestEncodeEscapesTrailingParam(t *testing.T) {
	line, err := Encode("srv", "PRIVMSG", "#chat", "hi there")
	if err != nil {
		t.Fatalf("Encode returned error: %s", err)
	}
	want := ":srv PRIVMSG #chat :hi there\r\n"
	if line != want {
		t.Errorf("Encode() = %q, wanted %q", line, want)
	}
}

func TestRoundTrip(t *testing.T) {
	line, err := Encode("alice!alice@host", "JOIN", "#chat")
	if err != nil {
		t.Fatalf("Encode returned error: %s", err)
	}

	stripped := line[:len(line)-2]
	got, err := Parse(stripped)
	if err != nil {
		t.Fatalf("Parse returned error: %s", err)
	}
	if got.Prefix != "alice!alice@host" || got.Command != "JOIN" ||
		!reflect.DeepEqual(got.Params, []string{"#chat"}) {
		t.Errorf("round trip mismatch: %+v", got)
	}
}
