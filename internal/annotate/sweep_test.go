package annotate

import (
	"regexp"
	"slices"
	"testing"
)

func lines(ss ...string) [][]byte {
	out := make([][]byte, len(ss))
	for i, s := range ss {
		out[i] = []byte(s)
	}
	return out
}

func TestSweepDefaultDisposition(t *testing.T) {
	input := lines("keep me", "", "dropped")

	out, err := sweep(slices.Values(input), Options{}, func(c *cursor) error {
		if string(c.Line()) == "keep me" {
			c.Preserve()
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || string(out[0]) != "keep me" {
		t.Errorf("default kill: got %q", out)
	}

	out, err = sweep(slices.Values(input), Options{PreserveDirectives: true}, func(c *cursor) error {
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	// Empty lines die even under PreserveDirectives.
	if len(out) != 2 {
		t.Errorf("default preserve: got %q", out)
	}
}

func TestSweepAsmLinum(t *testing.T) {
	input := lines("a", "skip", "b")
	var nums []int
	_, err := sweep(slices.Values(input), Options{}, func(c *cursor) error {
		if string(c.Line()) == "skip" {
			c.Kill()
			return nil
		}
		nums = append(nums, c.AsmLinum())
		c.Preserve()
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	// Killed lines do not advance the output counter.
	if len(nums) != 2 || nums[0] != 1 || nums[1] != 2 {
		t.Errorf("asm line numbers = %v, want [1 2]", nums)
	}
}

func TestCursorMatchAdvancingOffset(t *testing.T) {
	re := regexp.MustCompile(`\.[A-Z_a-z][$.0-9A-Z_a-z]*`)
	input := lines("\tjmp\t.L1, .L2(.L3)")
	var refs []string
	_, err := sweep(slices.Values(input), Options{}, func(c *cursor) error {
		for off := 0; ; {
			m, next, ok := c.Match(re, off)
			if !ok {
				break
			}
			refs = append(refs, string(m[0]))
			off = next
		}
		c.Kill()
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{".L1", ".L2", ".L3"}
	if !slices.Equal(refs, want) {
		t.Errorf("refs = %v, want %v", refs, want)
	}
}

func TestCursorMatchGroups(t *testing.T) {
	input := lines(`	.file 1 "dir" "name.cpp" md5 0xabc`)
	_, err := sweep(slices.Values(input), Options{}, func(c *cursor) error {
		m, _, ok := c.Match(rules().fileDirective, 0)
		if !ok {
			t.Fatal("no match")
		}
		if string(m[1]) != "1" || string(m[2]) != "dir" || string(m[3]) != "name.cpp" || string(m[4]) != "0xabc" {
			t.Errorf("groups = %q %q %q %q", m[1], m[2], m[3], m[4])
		}
		c.Kill()
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestFileDirectiveWithoutDirectory(t *testing.T) {
	input := lines(`	.file 2 "inner/header.hpp"`)
	_, err := sweep(slices.Values(input), Options{}, func(c *cursor) error {
		m, _, ok := c.Match(rules().fileDirective, 0)
		if !ok {
			t.Fatal("no match")
		}
		if m[2] != nil {
			t.Errorf("directory group = %q, want empty", m[2])
		}
		if string(m[3]) != "inner/header.hpp" {
			t.Errorf("filename group = %q", m[3])
		}
		c.Kill()
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
