// Package routing supplies the websocket URL patterns handed to
// router.URLRouter, either built in or read from a YAML file.
package routing

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/luciancaetano/ecochat/router"
)

// ChatConsumer is the consumer name the built-in patterns point at.
const ChatConsumer = "chat"

var (
	ErrNoPatterns      = errors.New("no websocket patterns defined")
	ErrUnknownConsumer = errors.New("unknown consumer")
	ErrEmptyPath       = errors.New("pattern path cannot be empty")
)

// Pattern is one entry of a routes file.
type Pattern struct {
	Path     string `yaml:"path"`
	Consumer string `yaml:"consumer"`
	Name     string `yaml:"name,omitempty"`
}

// File is the layout of a routes file:
//
//	websocket:
//	  - path: /ws/chat/
//	    consumer: chat
//	  - path: /ws/groups/{groupID}/
//	    consumer: chat
//	    name: group
type File struct {
	WebSocket []Pattern `yaml:"websocket"`
}

// DefaultPatterns are used when no routes file is configured.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{Path: "/ws", Consumer: ChatConsumer, Name: "default"},
		{Path: "/ws/chat/", Consumer: ChatConsumer, Name: "chat"},
		{Path: "/ws/groups/{groupID}/", Consumer: ChatConsumer, Name: "group"},
	}
}

// Parse reads a routes file.
func Parse(r io.Reader) ([]Pattern, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoPatterns
		}
		return nil, fmt.Errorf("parse routes: %w", err)
	}
	if len(f.WebSocket) == 0 {
		return nil, ErrNoPatterns
	}
	return f.WebSocket, nil
}

// Load returns the patterns in path, or DefaultPatterns when path is empty.
func Load(path string) ([]Pattern, error) {
	if path == "" {
		return DefaultPatterns(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open routes file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Check validates patterns against the consumer names known to the caller
// without binding any handler.
func Check(patterns []Pattern, known func(consumer string) bool) error {
	if len(patterns) == 0 {
		return ErrNoPatterns
	}
	for i, p := range patterns {
		if p.Path == "" {
			return fmt.Errorf("pattern %d: %w", i, ErrEmptyPath)
		}
		if !known(p.Consumer) {
			return fmt.Errorf("pattern %q: %w %q", p.Path, ErrUnknownConsumer, p.Consumer)
		}
	}
	return nil
}

// Resolve binds each pattern to its named consumer, keeping file order.
func Resolve(patterns []Pattern, consumers map[string]router.Handler) ([]router.Route, error) {
	err := Check(patterns, func(name string) bool { return consumers[name] != nil })
	if err != nil {
		return nil, err
	}
	routes := make([]router.Route, 0, len(patterns))
	for _, p := range patterns {
		routes = append(routes, router.Route{Pattern: p.Path, Name: p.Name, Handler: consumers[p.Consumer]})
	}
	return routes, nil
}

// Marshal renders patterns in routes file form.
func Marshal(w io.Writer, patterns []Pattern) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(File{WebSocket: patterns}); err != nil {
		return err
	}
	return enc.Close()
}
