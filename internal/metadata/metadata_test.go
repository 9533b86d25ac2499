package metadata_test

import (
	"testing"

	"camerasync/internal/metadata"
)

const sample = `ExifTool Version Number         : 12.40
File Name                       : IMG_0101.CR2
Create Date                     : 2016:07:03 14:22:10
Release Mode                    : Exposure Bracketing
Sequence Image Number           : 2
garbage line without separator
Lens Model                      : EF-S18-55mm f/3.5-5.6 IS
`

func TestParse(t *testing.T) {
	tags, err := metadata.Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if mode, ok := tags.ReleaseMode(); !ok || mode != "Exposure Bracketing" {
		t.Fatalf("ReleaseMode = %q, %v", mode, ok)
	}
	if seq, ok := tags.SequenceImageNumber(); !ok || seq != "2" {
		t.Fatalf("SequenceImageNumber = %q, %v", seq, ok)
	}
	if date, _ := tags.Get("Create Date"); date != "2016:07:03 14:22:10" {
		t.Fatalf("expected value after first colon to be kept intact, got %q", date)
	}
	if _, ok := tags.Get("garbage line without separator"); ok {
		t.Fatal("expected line without colon to be ignored")
	}
	if len(tags) != 6 {
		t.Fatalf("expected 6 tags, got %d: %v", len(tags), tags)
	}
}

func TestParseEmpty(t *testing.T) {
	tags, err := metadata.Parse(nil)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if _, ok := tags.ReleaseMode(); ok {
		t.Fatal("expected no release mode")
	}
}

func TestNilTags(t *testing.T) {
	var tags metadata.Tags
	if _, ok := tags.SequenceImageNumber(); ok {
		t.Fatal("expected nil tags to report missing")
	}
}
