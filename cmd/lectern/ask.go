package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"charm.land/lipgloss/v2"
)

var askSessionID string

var (
	answerStyle = lipgloss.NewStyle().
			Padding(0, 1)
	sourceHeaderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("99")).
				Bold(true)
	sourceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			PaddingLeft(2)
	sessionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true)
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a one-off question from the terminal",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")

		rt, err := buildRuntime(cfg)
		if err != nil {
			return err
		}
		defer rt.Close()

		answer, err := rt.Kernel.Answer(cmd.Context(), askSessionID, query)
		if err != nil {
			return err
		}

		fmt.Println(answerStyle.Render(answer.Text))

		if len(answer.Sources) > 0 {
			fmt.Println()
			fmt.Println(sourceHeaderStyle.Render("Sources"))
			for _, src := range answer.Sources {
				line := fmt.Sprintf("%d. %s", src.CitationNumber, src.CourseTitle)
				if src.LessonNumber != nil {
					line += fmt.Sprintf(" - Lesson %d", *src.LessonNumber)
					if src.LessonTitle != "" {
						line += ": " + src.LessonTitle
					}
				}
				if src.LessonLink != "" {
					line += " (" + src.LessonLink + ")"
				} else if src.CourseLink != "" {
					line += " (" + src.CourseLink + ")"
				}
				fmt.Println(sourceStyle.Render(line))
			}
		}

		fmt.Println()
		fmt.Println(sessionStyle.Render("session: " + answer.SessionID))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askSessionID, "session", "s", "", "continue an existing session")
}
