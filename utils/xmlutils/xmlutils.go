// Copyright 2025 The Parcela Authors
// SPDX-License-Identifier: Apache-2.0

// Package xmlutils provides helpers for decoding the XML documents served by
// the cadastre REST endpoints.
package xmlutils

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"golang.org/x/net/html/charset"
)

// NewDecoder returns a decoder that honours the encoding declared in the XML
// prolog (the service has historically answered in ISO-8859-1).
func NewDecoder(r io.Reader) *xml.Decoder {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel

	return dec
}

// IsXMLMedia reports whether the Content-Type value announces an XML payload.
// An empty value is accepted.
func IsXMLMedia(value string) bool {
	if value == "" {
		return true
	}

	media, _, err := mime.ParseMediaType(value)
	if err != nil {
		return false
	}

	return media == "text/xml" || media == "application/xml" || strings.HasSuffix(media, "+xml")
}

// Handler consumes one element. It must either decode or skip start.
type Handler func(dec *xml.Decoder, start *xml.StartElement) error

// Walk streams the document and calls the handler registered for the local
// name of each element, at any depth, within the namespace space. An empty
// space matches any namespace. Elements consumed by a handler are not
// descended into. Returning ErrStop from a handler ends the walk early.
func Walk(r io.Reader, space string, handlers map[string]Handler) error {
	dec := NewDecoder(r)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("decoding XML: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		h := handlers[start.Name.Local]
		if h == nil || (space != "" && start.Name.Space != space) {
			continue
		}

		if err := h(dec, &start); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}

			return fmt.Errorf("decoding <%s>: %w", start.Name.Local, err)
		}
	}
}

// ErrStop ends a Walk without error.
var ErrStop = errors.New("stop walking")

// FirstTexts returns the character data of the first element found, at any
// depth, for each requested local name. Names not present in the document,
// or present with blank text, are absent from the result.
func FirstTexts(r io.Reader, space string, names ...string) (map[string]string, error) {
	found := make(map[string]string, len(names))
	pending := len(names)
	handlers := make(map[string]Handler, len(names))

	for _, name := range names {
		handlers[name] = func(dec *xml.Decoder, start *xml.StartElement) error {
			var text string
			if err := dec.DecodeElement(&text, start); err != nil {
				return err
			}

			delete(handlers, name)

			if text = strings.TrimSpace(text); text != "" {
				found[name] = text
			}

			if pending--; pending == 0 {
				return ErrStop
			}

			return nil
		}
	}

	if err := Walk(r, space, handlers); err != nil {
		return nil, err
	}

	return found, nil
}
