package main

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jwebster45206/village-mystery/pkg/dialogue"
	"github.com/jwebster45206/village-mystery/pkg/world"
)

func newRootCmd() *cobra.Command {
	var mapPath, castPath string

	root := &cobra.Command{
		Use:           "validate",
		Short:         "Check village map and persona files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&mapPath, "map", "", "map YAML file (default: built-in village)")
	root.PersistentFlags().StringVar(&castPath, "personas", "", "persona YAML file (default: built-in cast)")

	root.AddCommand(&cobra.Command{
		Use:   "all",
		Short: "Validate the map and the personas against it",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadMap(mapPath)
			if err != nil {
				return err
			}
			cast, err := loadCast(castPath)
			if err != nil {
				return err
			}
			return runAll(cmd.OutOrStdout(), m, cast)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "path <from> <to>",
		Short: "Print the walking route between two rooms",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadMap(mapPath)
			if err != nil {
				return err
			}
			return runPath(cmd.OutOrStdout(), m, args[0], args[1])
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "grid",
		Short: "Print the room adjacency table",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadMap(mapPath)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), m.AdjacencyTable())
			return err
		},
	})
	return root
}

func loadMap(path string) (*world.Map, error) {
	if path == "" {
		return world.Village(), nil
	}
	return world.LoadMap(path)
}

func loadCast(path string) (*dialogue.Cast, error) {
	if path == "" {
		return dialogue.DefaultCast(), nil
	}
	return dialogue.LoadCast(path)
}

// runAll reports every problem it finds instead of stopping at the first.
func runAll(out io.Writer, m *world.Map, cast *dialogue.Cast) error {
	v := &validator{}
	for _, r := range m.Rooms {
		v.id("room ID", r.ID)
	}
	for _, c := range m.Containers {
		v.id("container ID", c.ID)
	}
	for _, it := range m.Items {
		v.id("item ID", it.ID)
	}
	for _, p := range cast.NPCs {
		v.id("persona ID", p.ID)
	}
	if err := cast.Validate(m); err != nil {
		v.add(err.Error())
	}
	for _, from := range m.Rooms {
		for _, to := range m.Rooms {
			if _, err := m.ShortestPath(from.ID, to.ID); err != nil {
				v.add(fmt.Sprintf("no route from %s to %s: %v", from.ID, to.ID, err))
			}
		}
	}

	if len(v.errors) > 0 {
		return fmt.Errorf("validation errors:\n%s", strings.Join(v.errors, "\n"))
	}
	_, err := fmt.Fprintf(out, "Map %q with %d rooms and %d personas is valid!\n", m.Name, len(m.Rooms), len(cast.NPCs))
	return err
}

func runPath(out io.Writer, m *world.Map, from, to string) error {
	fromID, err := roomID(m, from)
	if err != nil {
		return err
	}
	toID, err := roomID(m, to)
	if err != nil {
		return err
	}
	cmds, err := m.ShortestPath(fromID, toID)
	if err != nil {
		return err
	}
	for _, c := range world.Strings(cmds) {
		if _, err := fmt.Fprintln(out, c); err != nil {
			return err
		}
	}
	return nil
}

// roomID accepts a room ID or display name.
func roomID(m *world.Map, s string) (string, error) {
	if r, ok := m.Room(s); ok {
		return r.ID, nil
	}
	if r, ok := m.RoomByName(s); ok {
		return r.ID, nil
	}
	return "", fmt.Errorf("unknown room %q", s)
}

type validator struct {
	errors []string
}

var validIDRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)

func (v *validator) id(field, id string) {
	if !validIDRegex.MatchString(id) {
		v.add(fmt.Sprintf("%s '%s' should be lowercase snake_case", field, id))
	}
}

func (v *validator) add(msg string) {
	v.errors = append(v.errors, "  - "+msg)
}
