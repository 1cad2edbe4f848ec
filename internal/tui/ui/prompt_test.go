package ui

import "testing"

func TestPromptHistory(t *testing.T) {
	p := NewPrompt(DefaultTheme())
	var got []string
	p.SetOnSubmit(func(_ PromptMode, text string) { got = append(got, text) })

	p.Activate(PromptCommand, "")
	p.submit("sync")
	p.submit("sync")
	p.submit("share 01HX")
	if len(got) != 3 || len(p.history) != 2 {
		t.Fatalf("submitted %v, history %v", got, p.history)
	}

	p.Activate(PromptCommand, "")
	p.recall(-1)
	if p.GetText() != "share 01HX" {
		t.Errorf("up = %q", p.GetText())
	}
	p.recall(-1)
	p.recall(-1)
	if p.GetText() != "sync" {
		t.Errorf("up past oldest = %q", p.GetText())
	}
	p.recall(1)
	p.recall(1)
	if p.GetText() != "" {
		t.Errorf("down past newest = %q", p.GetText())
	}
}

func TestPromptEmptyCommandCancels(t *testing.T) {
	p := NewPrompt(DefaultTheme())
	submitted, cancelled := false, false
	p.SetOnSubmit(func(PromptMode, string) { submitted = true })
	p.SetOnCancel(func() { cancelled = true })

	p.Activate(PromptCommand, "")
	p.submit("")
	if submitted || !cancelled {
		t.Errorf("submitted = %v, cancelled = %v", submitted, cancelled)
	}
}

// Regression: Esc in filter mode left the half-typed filter applied.
func TestPromptFilterEscRestores(t *testing.T) {
	p := NewPrompt(DefaultTheme())
	var live []string
	p.SetOnChange(func(text string) { live = append(live, text) })

	p.Activate(PromptFilter, "heron")
	if p.GetText() != "heron" {
		t.Errorf("filter prompt opened with %q", p.GetText())
	}
	p.onChange("owl")
	p.cancel()
	if len(live) == 0 || live[len(live)-1] != "heron" {
		t.Errorf("live updates = %v, want the previous filter last", live)
	}
}
