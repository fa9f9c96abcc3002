package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/spf13/cobra"

	"github.com/recruitx/recruitx/internal/api"
	"github.com/recruitx/recruitx/internal/config"
)

// --- candidate ---

var candidateCmd = &cobra.Command{
	Use:   "candidate",
	Short: "Manage candidates",
}

var candidateCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a candidate",
	Long: `Register a candidate.

Examples:
  recruitx candidate create --name "Ada Lovelace" --email ada@example.com --phone +15551234567`,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := candidateRequestFromFlags(cmd)
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/candidates", req)
		if err != nil {
			return err
		}
		var c api.CandidateView
		if err := decodeJSON(resp, &c); err != nil {
			return err
		}
		printSuccess("Created candidate %s", c.ID)
		return nil
	},
}

var candidateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List candidates",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), fmt.Sprintf("/candidates?limit=%d&offset=%d", limit, offset))
		if err != nil {
			return err
		}
		var cs []api.CandidateView
		if err := decodeJSON(resp, &cs); err != nil {
			return err
		}
		if len(cs) == 0 {
			fmt.Println("No candidates found.")
			return nil
		}
		for _, c := range cs {
			fmt.Printf("%s  %-24s %-28s %s\n", colorize(colorCyan, shortID(c.ID)), c.Name, c.Email, c.Phone)
		}
		return nil
	},
}

var candidateShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a candidate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/candidates/"+args[0])
		if err != nil {
			return err
		}
		var c api.CandidateView
		if err := decodeJSON(resp, &c); err != nil {
			return err
		}
		return printJSON(c)
	},
}

var candidateUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Replace a candidate's name, email and phone",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := candidateRequestFromFlags(cmd)
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.put(cmd.Context(), "/candidates/"+args[0], req)
		if err != nil {
			return err
		}
		var c api.CandidateView
		if err := decodeJSON(resp, &c); err != nil {
			return err
		}
		printSuccess("Updated candidate %s", c.ID)
		return nil
	},
}

var candidateDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a candidate with their interviews and reports",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			printWarning("This deletes the candidate and all their interviews. Use --confirm to proceed.")
			return nil
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmd.Context(), "/candidates/"+args[0])
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Deleted candidate %s", args[0])
		return nil
	},
}

func candidateRequestFromFlags(cmd *cobra.Command) (api.CandidateRequest, error) {
	name, _ := cmd.Flags().GetString("name")
	email, _ := cmd.Flags().GetString("email")
	phone, _ := cmd.Flags().GetString("phone")
	if name == "" || email == "" || phone == "" {
		return api.CandidateRequest{}, errors.New("--name, --email and --phone are required")
	}
	return api.CandidateRequest{Name: name, Email: email, Phone: phone}, nil
}

func init() {
	for _, c := range []*cobra.Command{candidateCreateCmd, candidateUpdateCmd} {
		c.Flags().String("name", "", "full name")
		c.Flags().String("email", "", "email address")
		c.Flags().String("phone", "", "phone number in E.164 format")
	}
	candidateListCmd.Flags().Int("limit", 50, "maximum number of candidates to list")
	candidateListCmd.Flags().Int("offset", 0, "number of candidates to skip")
	candidateDeleteCmd.Flags().Bool("confirm", false, "confirm deletion")

	candidateCmd.AddCommand(candidateCreateCmd)
	candidateCmd.AddCommand(candidateListCmd)
	candidateCmd.AddCommand(candidateShowCmd)
	candidateCmd.AddCommand(candidateUpdateCmd)
	candidateCmd.AddCommand(candidateDeleteCmd)
}

// --- interview ---

var interviewCmd = &cobra.Command{
	Use:   "interview",
	Short: "Schedule and run interviews",
}

var interviewScheduleCmd = &cobra.Command{
	Use:   "schedule <candidate-id>",
	Short: "Schedule an interview and generate its questions",
	Long: `Schedule an interview and generate its questions.

Examples:
  recruitx interview schedule c0ffee --jd "Senior Go engineer" --in 30m
  recruitx interview schedule c0ffee --jd-file ./role.txt --at 2026-11-02T09:00:00Z
  recruitx interview schedule c0ffee --jd-pdf ./role.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jd, err := jobDescriptionFromFlags(cmd)
		if err != nil {
			return err
		}
		at, err := scheduledAtFromFlags(cmd, time.Now())
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		printStep("Generating questions...")
		resp, err := client.post(cmd.Context(), "/interviews/schedule", api.ScheduleRequest{
			CandidateID:    args[0],
			JobDescription: jd,
			ScheduledAt:    at,
		})
		if err != nil {
			return err
		}
		var out api.ScheduleResponse
		if err := decodeJSON(resp, &out); err != nil {
			return err
		}

		printSuccess("Scheduled interview %s for %s", out.InterviewID, at.Local().Format(time.RFC1123))
		if len(out.Questions) == 0 {
			printWarning("No questions yet; they will be generated when the call starts.")
		}
		printQuestions(out.Questions)
		return nil
	},
}

var interviewStartCmd = &cobra.Command{
	Use:   "start <interview-id>",
	Short: "Call the candidate now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/interviews/"+args[0]+"/start", nil)
		if err != nil {
			return err
		}
		var out api.StartResponse
		if err := decodeJSON(resp, &out); err != nil {
			return err
		}
		printSuccess("Calling candidate (call %s)", out.CallSID)
		return nil
	},
}

var interviewStatusCmd = &cobra.Command{
	Use:   "status <interview-id>",
	Short: "Show the status of an interview",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/interviews/"+args[0]+"/status")
		if err != nil {
			return err
		}
		var st api.StatusView
		if err := decodeJSON(resp, &st); err != nil {
			return err
		}

		printStatus("Interview", "%s", st.InterviewID)
		printStatus("Candidate", "%s", st.CandidateID)
		printStatus("Status", "%s", colorize(statusColor(st.Status), st.Status))
		printStatus("Scheduled", "%s", st.ScheduledAt.Local().Format(time.RFC1123))
		if st.StartedAt != nil {
			printStatus("Started", "%s", st.StartedAt.Local().Format(time.RFC1123))
		}
		if st.CompletedAt != nil {
			printStatus("Completed", "%s", st.CompletedAt.Local().Format(time.RFC1123))
		}
		printStatus("Answered", "%d of %d", st.Answered, st.TotalQuestions)
		return nil
	},
}

var interviewResponsesCmd = &cobra.Command{
	Use:   "responses <interview-id>",
	Short: "Show the answers recorded so far",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/interviews/"+args[0]+"/responses")
		if err != nil {
			return err
		}
		var rs []api.ResponseView
		if err := decodeJSON(resp, &rs); err != nil {
			return err
		}
		if len(rs) == 0 {
			fmt.Println("No answers recorded.")
			return nil
		}
		for _, r := range rs {
			fmt.Printf("\n%s %s\n", colorize(colorBold, fmt.Sprintf("Q%d.", r.QuestionIndex+1)), r.Question)
			answer := r.Answer
			if answer == "" {
				answer = colorize(colorYellow, "(no response)")
			}
			fmt.Printf("  %s\n", answer)
		}
		return nil
	},
}

var interviewCompleteCmd = &cobra.Command{
	Use:   "complete <interview-id>",
	Short: "Generate the report of an interview",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		printStep("Generating report...")
		resp, err := client.post(cmd.Context(), "/interviews/"+args[0]+"/complete", nil)
		if err != nil {
			return err
		}
		var out api.CompleteResponse
		if err := decodeJSON(resp, &out); err != nil {
			return err
		}
		printReport(out.Report)
		return nil
	},
}

var interviewCancelCmd = &cobra.Command{
	Use:   "cancel <interview-id>",
	Short: "Cancel a scheduled or running interview",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/interviews/"+args[0]+"/cancel", nil)
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Cancelled interview %s", args[0])
		return nil
	},
}

func jobDescriptionFromFlags(cmd *cobra.Command) (string, error) {
	text, _ := cmd.Flags().GetString("jd")
	file, _ := cmd.Flags().GetString("jd-file")
	pdfPath, _ := cmd.Flags().GetString("jd-pdf")

	switch {
	case text != "":
		return text, nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading job description: %w", err)
		}
		return string(data), nil
	case pdfPath != "":
		return readPDFText(pdfPath)
	}
	return "", errors.New("one of --jd, --jd-file, or --jd-pdf is required")
}

// readPDFText extracts the plain text of a PDF job description.
func readPDFText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	text, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(text); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	out := strings.TrimSpace(buf.String())
	if out == "" {
		return "", fmt.Errorf("no text found in %s", path)
	}
	return out, nil
}

func scheduledAtFromFlags(cmd *cobra.Command, now time.Time) (time.Time, error) {
	at, _ := cmd.Flags().GetString("at")
	in, _ := cmd.Flags().GetDuration("in")
	switch {
	case at != "" && in != 0:
		return time.Time{}, errors.New("--at and --in are mutually exclusive")
	case at != "":
		t, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return time.Time{}, fmt.Errorf("--at must be an RFC 3339 time: %w", err)
		}
		return t.UTC(), nil
	case in < 0:
		return time.Time{}, errors.New("--in must not be negative")
	}
	return now.Add(in).UTC(), nil
}

func printQuestions(qs []api.QuestionView) {
	for _, q := range qs {
		fmt.Printf("  %s %s\n", colorize(colorBold, fmt.Sprintf("%d.", q.Index+1)), q.Question)
		if q.Skill != "" {
			fmt.Printf("     %s\n", colorize(colorCyan, q.Skill))
		}
	}
}

func init() {
	interviewScheduleCmd.Flags().String("jd", "", "job description text")
	interviewScheduleCmd.Flags().String("jd-file", "", "read the job description from a text file")
	interviewScheduleCmd.Flags().String("jd-pdf", "", "read the job description from a PDF")
	interviewScheduleCmd.Flags().String("at", "", "call time in RFC 3339 (default now)")
	interviewScheduleCmd.Flags().Duration("in", 0, "call after this delay, e.g. 30m")

	interviewCmd.AddCommand(interviewScheduleCmd)
	interviewCmd.AddCommand(interviewStartCmd)
	interviewCmd.AddCommand(interviewStatusCmd)
	interviewCmd.AddCommand(interviewResponsesCmd)
	interviewCmd.AddCommand(interviewCompleteCmd)
	interviewCmd.AddCommand(interviewCancelCmd)
}

// --- report ---

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Read interview reports",
}

var reportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		candidate, _ := cmd.Flags().GetString("candidate")

		path := fmt.Sprintf("/reports?limit=%d", limit)
		if candidate != "" {
			path = "/reports/candidate/" + candidate
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}
		var reps []api.ReportView
		if err := decodeJSON(resp, &reps); err != nil {
			return err
		}
		if len(reps) == 0 {
			fmt.Println("No reports found.")
			return nil
		}
		for _, r := range reps {
			fmt.Printf("%s  %s  %5.1f  %s\n",
				colorize(colorCyan, shortID(r.InterviewID)),
				r.CreatedAt.Local().Format("2006-01-02 15:04"),
				r.OverallScore,
				r.HiringDecision,
			)
		}
		return nil
	},
}

var reportShowCmd = &cobra.Command{
	Use:   "show <interview-id>",
	Short: "Show the report of an interview",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/reports/interview/"+args[0])
		if err != nil {
			return err
		}
		var rep api.ReportView
		if err := decodeJSON(resp, &rep); err != nil {
			return err
		}
		if asJSON {
			return printJSON(rep)
		}
		printReport(rep)
		return nil
	},
}

var reportSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Aggregate scores and common strengths and weaknesses",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/reports/summary")
		if err != nil {
			return err
		}
		var sum any
		if err := decodeJSON(resp, &sum); err != nil {
			return err
		}
		return printJSON(sum)
	},
}

func printReport(r api.ReportView) {
	printStatus("Interview", "%s", r.InterviewID)
	printStatus("Score", "%.1f", r.OverallScore)
	printStatus("Decision", "%s", colorize(colorBold, r.HiringDecision))
	printStatus("Strengths", "%s", strings.Join(r.Strengths, ", "))
	printStatus("Weaknesses", "%s", strings.Join(r.Weaknesses, ", "))
	if r.DetailedAnalysis != "" {
		fmt.Printf("\n%s\n", r.DetailedAnalysis)
	}
	if r.Recommendations != "" {
		fmt.Printf("\n%s %s\n", colorize(colorBold, "Recommendations:"), r.Recommendations)
	}
}

func init() {
	reportListCmd.Flags().Int("limit", 20, "maximum number of reports to list")
	reportListCmd.Flags().String("candidate", "", "only reports of this candidate")
	reportShowCmd.Flags().Bool("json", false, "print the raw JSON report")

	reportCmd.AddCommand(reportListCmd)
	reportCmd.AddCommand(reportShowCmd)
	reportCmd.AddCommand(reportSummaryCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: "Set a configuration value in the config file.\n\nValid keys:\n  " +
		strings.Join(config.ValidKeys(), "\n  "),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

// --- migrate ---

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()
		store, err := openStore(ctx, cfg)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		versions, err := store.AppliedMigrations()
		if err != nil {
			return err
		}
		printSuccess("%s schema at version %d (%d migrations applied)", store.Dialect(), lastVersion(versions), len(versions))
		return nil
	},
}

func lastVersion(versions []int) int {
	if len(versions) == 0 {
		return 0
	}
	return versions[len(versions)-1]
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

