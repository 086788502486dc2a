package main

import (
	"fmt"
	"io"

	"github.com/ashureev/hacxweb/internal/config"
	"github.com/ashureev/hacxweb/internal/registry"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	providerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("46"))

	kindStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	defaultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)
)

func newProvidersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List configured providers and models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			reg, err := loadRegistry(cfg)
			if err != nil {
				return err
			}
			printProviders(cmd.OutOrStdout(), reg)
			return nil
		},
	}
}

func printProviders(w io.Writer, reg *registry.Registry) {
	for _, p := range reg.List() {
		fmt.Fprintf(w, "%s %s %s\n", providerStyle.Render(p.DisplayName), p.ID, kindStyle.Render("("+string(p.Kind)+")"))
		for _, m := range p.Models {
			marker := " "
			if m.Name == p.DefaultModel {
				marker = defaultStyle.Render("*")
			}
			fmt.Fprintf(w, "  %s %s - %s\n", marker, m.Name, m.Alias)
		}
	}
}
