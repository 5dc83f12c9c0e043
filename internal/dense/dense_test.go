package dense

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/phobologic/projindex/internal/model"
)

func TestEncodeSignature(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		fs   model.FunctionSignature
		want string
	}{
		{"bare", model.FunctionSignature{Name: "foo", Line: 1, Signature: "()"}, "foo:1:()::"},
		{"calls and doc", model.FunctionSignature{Name: "run", Line: 12, Signature: "(a, b)", Calls: []string{"bar", "baz"}, Doc: "Runs it."}, "run:12:(a, b):bar,baz:Runs it."},
		{"colons escaped", model.FunctionSignature{Name: "greet", Line: 3, Signature: "(name: str) -> str", Doc: `Note: a\b`}, `greet:3:(name\: str) -> str::Note\: a\\b`},
		{"comma in call", model.FunctionSignature{Name: "x", Line: 2, Signature: "()", Calls: []string{"a,b"}}, `x:2:():a\,b:`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := EncodeSignature(tt.fs)
			if got != tt.want {
				t.Errorf("EncodeSignature = %q, want %q", got, tt.want)
			}
			back, err := DecodeSignature(got)
			if err != nil {
				t.Fatalf("DecodeSignature: %v", err)
			}
			if !reflect.DeepEqual(back, tt.fs) {
				t.Errorf("round trip = %+v, want %+v", back, tt.fs)
			}
		})
	}
}

func TestDecodeSignatureErrors(t *testing.T) {
	t.Parallel()
	for _, s := range []string{"", "foo:1:()", "foo:x:():: ", "a:1:b:c:d:e"} {
		if _, err := DecodeSignature(s); !errors.Is(err, ErrMalformed) {
			t.Errorf("DecodeSignature(%q) err = %v, want ErrMalformed", s, err)
		}
	}
}

func sampleDoc() *model.IndexDocument {
	return &model.IndexDocument{
		GeneratedAt: time.Date(2026, 3, 1, 12, 30, 0, 500, time.UTC),
		Root:        "/work/proj",
		BuildSystem: "python",
		Fingerprint: "abc123",
		Tree:        []string{".", "└── src/ (2 files)"},
		Stats: model.Stats{
			TotalFiles:       3,
			TotalDirectories: 2,
			FullyParsed:      map[string]int{"python": 2},
			ListedOnly:       map[string]int{"rs": 1},
			MarkdownFiles:    1,
		},
		Files: map[string]model.FileRecord{
			"src/a.py": {
				Tag:    model.TagPython,
				Parsed: true,
				Functions: []model.FunctionSignature{
					{Name: "foo", Line: 1, Signature: "()", Calls: []string{"bar"}},
				},
				Classes: map[string]model.ClassRecord{
					"C": {Line: 3, Methods: []model.FunctionSignature{{Name: "m", Line: 4, Signature: "(self)"}}},
					"E": {Line: 9},
				},
			},
			"src/b.py": {Tag: model.TagPython, Parsed: true},
			"lib.rs":   {Tag: model.TagUnknown},
		},
		CallGraph:         []model.CallEdge{{Caller: "foo", Callee: "bar"}},
		Dependencies:      map[string][]string{"src/a.py": {"src/b.py"}},
		Documentation:     map[string][]string{"README.md": {"Title", "Usage"}},
		DirectoryPurposes: map[string]string{"src": "Source code"},
	}
}

func TestEncodeLayout(t *testing.T) {
	t.Parallel()
	data, err := Encode(sampleDoc())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	s := string(data)
	for _, want := range []string{
		`"at":"2026-03-01T12:30:00.0000005Z"`,
		`"lib.rs":"u"`,
		`"src/b.py":["p"]`,
		`"src/a.py":["p",["foo:1:():bar:"],{"C":[3,["m:4:(self)::"]],"E":[9,[]]}]`,
		`"g":[["foo","bar"]]`,
		`"d":{"README.md":["Title","Usage"]}`,
		`"dir_purposes":{"src":"Source code"}`,
	} {
		if !strings.Contains(s, want) {
			t.Errorf("encoded output missing %s\n%s", want, s)
		}
	}
	if bytes.Contains(data, []byte("\n")) {
		t.Error("output is not minified")
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()
	doc := sampleDoc()
	data, err := Encode(doc)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	back, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !back.GeneratedAt.Equal(doc.GeneratedAt) {
		t.Errorf("GeneratedAt = %v, want %v", back.GeneratedAt, doc.GeneratedAt)
	}
	back.GeneratedAt = doc.GeneratedAt
	if !reflect.DeepEqual(back, doc) {
		t.Errorf("round trip mismatch\n got: %+v\nwant: %+v", back, doc)
	}

	again, err := Encode(back)
	if err != nil {
		t.Fatalf("re-Encode: %v", err)
	}
	if !bytes.Equal(again, data) {
		t.Error("re-encoding is not byte-identical")
	}
}

func TestEncodeDeterministic(t *testing.T) {
	t.Parallel()
	first, _ := Encode(sampleDoc())
	for i := 0; i < 5; i++ {
		next, _ := Encode(sampleDoc())
		if !bytes.Equal(first, next) {
			t.Fatal("encoding differs between runs")
		}
	}
}

func TestDecodeMalformed(t *testing.T) {
	t.Parallel()
	for _, in := range []string{
		``,
		`{`,
		`{"at":"2026-01-01T00:00:00Z"}`,
		`{"at":"nope","f":{}}`,
		`{"at":"2026-01-01T00:00:00Z","f":{"a.py":[]}}`,
		`{"at":"2026-01-01T00:00:00Z","f":{"a.py":["p",["broken"]]}}`,
		`{"at":"2026-01-01T00:00:00Z","f":{"a.py":["p",[],{"C":[1]}]}}`,
	} {
		if _, err := Decode([]byte(in)); !errors.Is(err, ErrMalformed) {
			t.Errorf("Decode(%q) err = %v, want ErrMalformed", in, err)
		}
	}
}
