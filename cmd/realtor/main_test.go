package main

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
)

func TestParseSeed(t *testing.T) {
	f, err := os.Open("testdata/properties.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	props, skipped, err := parseSeed(f)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(props) != 3 {
		t.Fatalf("expected 3 usable listings, got %d", len(props))
	}
	if len(skipped) != 1 || skipped[0] != "gz-002" {
		t.Errorf("expected gz-002 to be skipped, got %v", skipped)
	}
	first := props[0]
	if first.City != "New Cairo" || *first.Bedrooms != 2 || *first.AreaSqm != 140 || len(first.Amenities) != 3 {
		t.Errorf("unexpected first listing %+v", first)
	}
}

func TestParseSeed_Invalid(t *testing.T) {
	if _, _, err := parseSeed(strings.NewReader("properties: {")); err == nil {
		t.Error("expected a decode error")
	}
}

func TestREPL(t *testing.T) {
	in := strings.NewReader("hello\n\n  fail  \nbye\nnever reached\n")
	var out bytes.Buffer
	var seen []string

	err := repl(in, &out, func(line string) (bool, error) {
		seen = append(seen, line)
		switch line {
		case "fail":
			return false, errors.New("boom")
		case "bye":
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		t.Fatalf("repl: %v", err)
	}
	if strings.Join(seen, ",") != "hello,fail,bye" {
		t.Errorf("unexpected lines %v", seen)
	}
	if !strings.Contains(out.String(), "error: boom") {
		t.Errorf("expected handler error in output, got %q", out.String())
	}
}
