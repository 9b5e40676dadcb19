package ai

import "testing"

func TestStripJSONFence(t *testing.T) {
	t.Run("jsonフェンスを剥がせるのだ", func(t *testing.T) {
		input := "```json\n{\"acceptable\": true}\n```"
		if got := StripJSONFence(input); got != `{"acceptable": true}` {
			t.Errorf("フェンスが剥がれていないのだ: %q", got)
		}
	})

	t.Run("言語指定なしのフェンスも剥がせるのだ", func(t *testing.T) {
		input := "```\n{\"a\": 1}\n```"
		if got := StripJSONFence(input); got != `{"a": 1}` {
			t.Errorf("フェンスが剥がれていないのだ: %q", got)
		}
	})

	t.Run("フェンスがなければそのままなのだ", func(t *testing.T) {
		input := `{"a": 1}`
		if got := StripJSONFence(input); got != `{"a": 1}` {
			t.Errorf("入力が変わってしまったのだ: %q", got)
		}
	})
}

func TestStripRenpyFence(t *testing.T) {
	input := "```renpy\nlabel chapter1:\n    \"ここから始まる\"\n```"
	want := "label chapter1:\n    \"ここから始まる\""
	if got := StripRenpyFence(input); got != want {
		t.Errorf("renpyフェンスが剥がれていないのだ: %q", got)
	}
}
