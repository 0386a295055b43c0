package tarsconf

import "testing"

func TestParseRoundTrip(t *testing.T) {
	const doc = "<root>\n\t<server>\n\t\tapp=Demo\n\t\tserver=S\n\t</server>\n</root>\n"

	root, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	v, err := root.Get("/root/server<app>")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != "Demo" {
		t.Fatalf("Get(/root/server<app>) = %q, want Demo", v)
	}

	serialized := Serialize(root)
	again, err := Parse(serialized)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}

	server, err := again.GetDomain("/root/server")
	if err != nil {
		t.Fatalf("GetDomain: %v", err)
	}
	if got := server.ParamOrder(); len(got) != 2 || got[0] != "app" || got[1] != "server" {
		t.Fatalf("param order after round-trip = %v, want [app server]", got)
	}
}

func TestGetDefaultVsStrict(t *testing.T) {
	root, err := Parse("<a>\n</a>\n")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if _, err := root.Get("/a<k>"); err == nil {
		t.Fatal("Get on missing key should fail in strict form")
	}

	got, err := root.GetDefault("/a<k>", "dflt")
	if err != nil {
		t.Fatalf("GetDefault: %v", err)
	}
	if got != "dflt" {
		t.Fatalf("GetDefault = %q, want dflt", got)
	}

	if _, err := root.GetDefault("/missing<k>", "dflt"); err == nil {
		t.Fatal("GetDefault should still fail when the domain itself is absent")
	}
}

func TestEscapes(t *testing.T) {
	root, err := Parse(`k=a\=b\nc`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	v, ok := root.Param("k")
	if !ok || v != "a=b\nc" {
		t.Fatalf("Param(k) = %q,%v want a=b\\nc,true", v, ok)
	}
}

func TestMismatchedClosingTag(t *testing.T) {
	_, err := Parse("<a>\n</b>\n")
	if err == nil {
		t.Fatal("expected mismatched closing tag error")
	}
}

func TestUnterminatedSection(t *testing.T) {
	_, err := Parse("<a>\n")
	if err == nil {
		t.Fatal("expected unterminated section error")
	}
}

func TestJoinUpdateMode(t *testing.T) {
	base, _ := Parse("a=1\nb=2\n")
	overlay, _ := Parse("a=9\nc=3\n")

	merged, err := Join(base, overlay, true)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if v, _ := merged.Param("a"); v != "9" {
		t.Fatalf("update-mode join: a = %q, want 9 (overlay wins)", v)
	}
	if v, _ := merged.Param("b"); v != "2" {
		t.Fatalf("update-mode join: b = %q, want 2", v)
	}

	mergedNoUpdate, err := Join(base, overlay, false)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if v, _ := mergedNoUpdate.Param("a"); v != "1" {
		t.Fatalf("non-update join: a = %q, want 1 (base wins)", v)
	}
}

func TestParseFlatAndDump(t *testing.T) {
	values, err := ParseFlat("logLevel=DEBUG\ncloseCout=1\n")
	if err != nil {
		t.Fatalf("ParseFlat: %v", err)
	}
	if values["logLevel"] != "DEBUG" {
		t.Fatalf("logLevel = %q", values["logLevel"])
	}

	dumped := DumpFlat([]string{"logLevel", "closeCout"}, values)
	if dumped != "logLevel=DEBUG\ncloseCout=1\n" {
		t.Fatalf("DumpFlat = %q", dumped)
	}
}
