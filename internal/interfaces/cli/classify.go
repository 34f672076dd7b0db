package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	classifyJSON  bool
	classifyRules bool
)

func init() {
	cmd := &cobra.Command{
		Use:   "classify [text...]",
		Short: "Classify a message and print the canned reply",
		RunE:  runClassify,
	}
	cmd.Flags().BoolVar(&classifyJSON, "json", false, "Print the result as JSON")
	cmd.Flags().BoolVar(&classifyRules, "rules", false, "List the active rules instead of classifying")

	RootCmd.AddCommand(cmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	classifier, err := buildClassifier(cfg)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if classifyRules {
		for i, rule := range classifier.Rules() {
			triggers := strings.Join(rule.Triggers, ", ")
			if triggers == "" {
				triggers = "(fallback)"
			}
			fmt.Fprintf(out, "%d. %s: %s\n", i+1, rule.Intent, triggers)
		}
		return nil
	}

	text := strings.Join(args, " ")
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("nothing to classify")
	}

	intent, reply := classifier.Classify(text)
	if classifyJSON {
		b, _ := json.MarshalIndent(map[string]string{"intent": intent, "reply": reply}, "", "  ")
		fmt.Fprintln(out, string(b))
		return nil
	}
	fmt.Fprintf(out, "intent: %s\nreply:  %s\n", intent, reply)
	return nil
}
