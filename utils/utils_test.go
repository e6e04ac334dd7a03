package utils

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"
)

// zipEntry is a zip local file header naming one entry, enough for sniffing.
func zipEntry(name string) []byte {
	h := make([]byte, 30, 30+len(name))
	copy(h, "PK\x03\x04")
	binary.LittleEndian.PutUint16(h[26:], uint16(len(name)))
	return append(h, name...)
}

// oleFile is a compound file header whose root directory entry carries clsid.
func oleFile(clsid []byte) []byte {
	b := make([]byte, 1024)
	copy(b, "\xd0\xcf\x11\xe0\xa1\xb1\x1a\xe1")
	// directory stream starts at sector 0, the root entry clsid sits at +80
	copy(b[512+80:], clsid)
	return b
}

func TestDetectFileType(t *testing.T) {
	pdf := []byte("%PDF-1.7\n")
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	jpg := []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00")
	docx := append(zipEntry("[Content_Types].xml"), zipEntry("word/document.xml")...)
	xlsx := append(zipEntry("[Content_Types].xml"), zipEntry("xl/worksheets/sheet1.xml")...)
	plainZip := zipEntry("notas.txt")
	wordClsid := []byte{0x06, 0x09, 0x02, 0x00, 0x00, 0x00, 0x00, 0x00, 0xc0, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x46}
	doc := oleFile(wordClsid)
	bareOle := oleFile(nil)
	elf := append([]byte("\x7fELF\x02\x01\x01\x00"), make([]byte, 64)...)

	const (
		docxType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
		xlsxType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	)
	tests := []struct {
		name   string
		file   string
		head   []byte
		want   string
		wantOK bool
	}{
		{"pdf", "a.pdf", pdf, "application/pdf", true},
		{"upper case extension", "A.PDF", pdf, "application/pdf", true},
		{"png", "foto.png", png, "image/png", true},
		{"jpeg", "foto.jpeg", jpg, "image/jpeg", true},
		{"docx", "nota.docx", docx, docxType, true},
		{"xlsx", "planilla.xlsx", xlsx, xlsxType, true},
		{"word 97 doc", "nota.doc", doc, "application/msword", true},
		{"compound file named xls", "planilla.xls", bareOle, "application/vnd.ms-excel", true},
		{"renamed text", "falso.pdf", []byte("hola"), "", false},
		{"png named pdf", "foto.pdf", png, "", false},
		{"zip named pdf", "a.pdf", docx, "", false},
		{"plain zip named docx", "nota.docx", plainZip, "", false},
		{"spreadsheet named docx", "nota.docx", xlsx, "", false},
		{"compound file named docx", "nota.docx", doc, "", false},
		{"executable named xls", "planilla.xls", elf, "", false},
		{"executable named doc", "nota.doc", elf, "", false},
		{"unknown extension", "script.sh", []byte("#!/bin/sh"), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DetectFileType(tt.file, tt.head)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("DetectFileType(%q) = %q, %v; want %q, %v", tt.file, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestFileTokens(t *testing.T) {
	tokens := NewFileTokens("secret", time.Hour)
	tok, err := tokens.Sign("processes/a/b.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if err := tokens.Verify(tok, "processes/a/b.pdf"); err != nil {
		t.Errorf("valid token rejected: %v", err)
	}
	if err := tokens.Verify(tok, "processes/a/other.pdf"); !errors.Is(err, ErrInvalidFileToken) {
		t.Errorf("token for another key: err = %v", err)
	}
	if err := NewFileTokens("other", time.Hour).Verify(tok, "processes/a/b.pdf"); !errors.Is(err, ErrInvalidFileToken) {
		t.Errorf("token from another secret: err = %v", err)
	}
	if err := tokens.Verify("garbage", "processes/a/b.pdf"); !errors.Is(err, ErrInvalidFileToken) {
		t.Errorf("garbage token: err = %v", err)
	}

	expired := NewFileTokens("secret", time.Nanosecond)
	old, _ := expired.Sign("k")
	time.Sleep(10 * time.Millisecond)
	if err := expired.Verify(old, "k"); !errors.Is(err, ErrInvalidFileToken) {
		t.Errorf("expired token: err = %v", err)
	}
}

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir(), "http://localhost:8080/", NewFileTokens("secret", time.Hour))
	if err != nil {
		t.Fatal(err)
	}

	body := "contenido del archivo"
	stored, err := store.Put(ctx, "processes/p1/doc.pdf", "application/pdf", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if stored.Size != int64(len(body)) || len(stored.Checksum) != 64 {
		t.Errorf("stored = %+v", stored)
	}
	if !strings.HasPrefix(stored.URL, "http://localhost:8080/files/processes/p1/doc.pdf?token=") {
		t.Errorf("url = %s", stored.URL)
	}

	u, _ := url.Parse(stored.URL)
	f, err := store.Open("processes/p1/doc.pdf", u.Query().Get("token"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	got, _ := io.ReadAll(f)
	f.Close()
	if string(got) != body {
		t.Errorf("content = %q", got)
	}

	if _, err := store.Open("processes/p1/doc.pdf", "bad"); !errors.Is(err, ErrInvalidFileToken) {
		t.Errorf("bad token: err = %v", err)
	}

	if err := store.Delete(ctx, "processes/p1/doc.pdf"); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(ctx, "processes/p1/doc.pdf"); err != nil {
		t.Errorf("second delete: %v", err)
	}
	if _, err := store.Open("processes/p1/doc.pdf", u.Query().Get("token")); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("open deleted: err = %v", err)
	}
}

func TestLocalStoreStaysInsideDir(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "", NewFileTokens("secret", time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	p, err := store.path("../../etc/passwd")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(p, dir) {
		t.Errorf("path %s escapes %s", p, dir)
	}
	if _, err := store.Put(context.Background(), "", "text/plain", bytes.NewReader(nil)); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("empty key: err = %v", err)
	}
}

func TestLocalLocker(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "doc-1", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := l.Acquire(ctx, "doc-1", time.Minute); !errors.Is(err, ErrLocked) {
		t.Errorf("second acquire: err = %v, want ErrLocked", err)
	}
	if _, err := l.Acquire(ctx, "doc-2", time.Minute); err != nil {
		t.Errorf("other key: %v", err)
	}
	release()
	if _, err := l.Acquire(ctx, "doc-1", time.Minute); err != nil {
		t.Errorf("acquire after release: %v", err)
	}

	short, err := l.Acquire(ctx, "doc-3", time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := l.Acquire(ctx, "doc-3", time.Minute); err != nil {
		t.Errorf("acquire after expiry: %v", err)
	}
	// a stale release must not drop the newer holder
	short()
	if _, err := l.Acquire(ctx, "doc-3", time.Minute); !errors.Is(err, ErrLocked) {
		t.Errorf("stale release freed the lock: err = %v", err)
	}
}

func TestValidatePhone(t *testing.T) {
	for _, p := range []string{"+5491155554444", "11 4555-1234", "(351) 422-1234"} {
		if !ValidatePhone(p) {
			t.Errorf("ValidatePhone(%q) = false", p)
		}
	}
	for _, p := range []string{"12", "abc", "+0123456789", "011 4555-1234"} {
		if ValidatePhone(p) {
			t.Errorf("ValidatePhone(%q) = true", p)
		}
	}
}

func TestDates(t *testing.T) {
	at := time.Date(2025, 3, 9, 15, 30, 0, 0, time.UTC)
	if got := EndOfDay(at); got.Hour() != 23 || got.Day() != 9 {
		t.Errorf("EndOfDay = %v", got)
	}
	if got := DaysBetween(at, at.AddDate(0, 0, 3).Add(-time.Hour)); got != 3 {
		t.Errorf("DaysBetween = %d, want 3", got)
	}
	if MonthKey(at) != "2025-03" {
		t.Errorf("MonthKey = %s", MonthKey(at))
	}
	if _, err := ParseDate("2025-03-09"); err != nil {
		t.Error(err)
	}
	if _, err := ParseDate("2025-03-09T10:00:00Z"); err != nil {
		t.Error(err)
	}
	if _, err := ParseDate("09/03/2025"); err == nil {
		t.Error("expected dd/mm/yyyy to be rejected")
	}
}
