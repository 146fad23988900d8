package services

import (
	"strings"
	"testing"
)

func TestFilterGraphSerialization(t *testing.T) {
	g := NewFilterGraph()
	g.Add("scale", "1080:1920", []string{"0:v"}, "scaled")
	g.Add("format", "yuv420p", []string{"scaled"}, "vout")

	if err := g.Validate("vout"); err != nil {
		t.Fatalf("expected valid graph: %v", err)
	}

	want := "[0:v]scale=1080:1920[scaled];[scaled]format=yuv420p[vout]"
	if got := g.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestFilterGraphNoArgs(t *testing.T) {
	g := NewFilterGraph()
	g.Add("anull", "", []string{"0:a"}, "aout")

	if err := g.Validate("aout"); err != nil {
		t.Fatalf("expected valid graph: %v", err)
	}
	if got := g.String(); got != "[0:a]anull[aout]" {
		t.Errorf("String() = %q", got)
	}
}

func TestFilterGraphEmptyInvalid(t *testing.T) {
	if err := NewFilterGraph().Validate("vout"); err == nil {
		t.Error("empty graph should not validate")
	}
}

func TestFilterGraphUndefinedInput(t *testing.T) {
	g := NewFilterGraph()
	g.Add("format", "yuv420p", []string{"nowhere"}, "vout")

	err := g.Validate("vout")
	if err == nil || !strings.Contains(err.Error(), "undefined stream") {
		t.Errorf("expected undefined stream error, got %v", err)
	}
}

func TestFilterGraphDuplicateOutput(t *testing.T) {
	g := NewFilterGraph()
	g.Add("scale", "100:100", []string{"0:v"}, "x")
	g.Add("scale", "200:200", []string{"1:v"}, "x")

	err := g.Validate("x")
	if err == nil || !strings.Contains(err.Error(), "redefines") {
		t.Errorf("expected redefinition error, got %v", err)
	}
}

func TestFilterGraphDoubleConsumption(t *testing.T) {
	g := NewFilterGraph()
	g.Add("scale", "100:100", []string{"0:v"}, "x")
	g.Add("format", "yuv420p", []string{"x"}, "a")
	g.Add("format", "yuv420p", []string{"x"}, "b")

	err := g.Validate("a", "b")
	if err == nil || !strings.Contains(err.Error(), "already consumed") {
		t.Errorf("expected double consumption error, got %v", err)
	}
}

func TestFilterGraphUnconsumedStream(t *testing.T) {
	g := NewFilterGraph()
	g.Add("scale", "100:100", []string{"0:v"}, "x")
	g.Add("scale", "200:200", []string{"1:v"}, "y")

	err := g.Validate("x")
	if err == nil || !strings.Contains(err.Error(), "never consumed") {
		t.Errorf("expected unconsumed stream error, got %v", err)
	}
}

func TestFilterGraphMissingTerminal(t *testing.T) {
	g := NewFilterGraph()
	g.Add("scale", "100:100", []string{"0:v"}, "x")

	err := g.Validate("x", "aout")
	if err == nil || !strings.Contains(err.Error(), "never produced") {
		t.Errorf("expected missing terminal error, got %v", err)
	}
}

func TestFilterGraphConsumedTerminal(t *testing.T) {
	g := NewFilterGraph()
	g.Add("scale", "100:100", []string{"0:v"}, "x")
	g.Add("format", "yuv420p", []string{"x"}, "vout")

	err := g.Validate("x", "vout")
	if err == nil || !strings.Contains(err.Error(), "consumed by another node") {
		t.Errorf("expected consumed terminal error, got %v", err)
	}
}

func TestFilterGraphMultiOutput(t *testing.T) {
	g := NewFilterGraph()
	g.Add("asplit", "2", []string{"0:a"}, "one", "two")
	g.Add("volume", "0.5", []string{"one"}, "quiet")
	g.Add("amix", "inputs=2", []string{"quiet", "two"}, "aout")

	if err := g.Validate("aout"); err != nil {
		t.Fatalf("expected valid graph: %v", err)
	}
}

func TestEscapeDrawtext(t *testing.T) {
	got := escapeDrawtext("50% off: don't miss")
	if strings.Contains(got, "'") {
		t.Errorf("single quotes should be stripped, got %q", got)
	}
	if !strings.Contains(got, "\\%") || !strings.Contains(got, "\\:") {
		t.Errorf("percent and colon should be escaped, got %q", got)
	}
}
