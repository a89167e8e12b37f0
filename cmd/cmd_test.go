package cmd

import (
	"bytes"
	"strings"
	"testing"
)

func TestSubcommandsRegistered(t *testing.T) {
	want := []string{"serve", "ask", "ingest", "version"}

	registered := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		registered[c.Name()] = true
	}

	for _, name := range want {
		if !registered[name] {
			t.Errorf("command %q not registered on root", name)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)

	versionCmd.Run(versionCmd, nil)

	if !strings.Contains(out.String(), "hellosure") {
		t.Errorf("version output = %q, want the binary name", out.String())
	}
	if !strings.Contains(out.String(), AppVersion) {
		t.Errorf("version output = %q, want %q", out.String(), AppVersion)
	}
}

func TestAskRequiresQuestion(t *testing.T) {
	if err := askCmd.Args(askCmd, nil); err == nil {
		t.Error("ask accepted an empty argument list")
	}
	if err := askCmd.Args(askCmd, []string{"domanda"}); err != nil {
		t.Errorf("ask rejected a question: %v", err)
	}
}

func TestRenderMarkdownFallsBackToText(t *testing.T) {
	got := renderMarkdown("testo semplice")
	if !strings.Contains(got, "testo semplice") {
		t.Errorf("rendered output %q lost the answer text", got)
	}
}
