package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"roster/internal/codec"
	"roster/internal/handler"
	"roster/internal/model"
	"roster/internal/service"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts, true)
			if err != nil {
				return err
			}
			defer a.Close()

			importService := service.NewImportService(a.students, a.cfg.ImportWorkers, a.logger)
			router := handler.NewRouter(
				handler.NewStudentHandler(a.students, a.logger),
				handler.NewUploadHandler(importService, a.cfg.UploadDir, a.logger),
				handler.NewProgressHandler(importService, a.logger),
				a.cfg.AllowedOrigins,
				a.logger,
			)
			srv := &http.Server{
				Addr:              ":" + a.cfg.ServerPort,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			g, gctx := errgroup.WithContext(ctx)

			g.Go(func() error {
				a.logger.Info("Server running", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				err := srv.Shutdown(shutdownCtx)
				importService.Wait()
				a.logger.Info("Server stopped")
				return err
			})
			return g.Wait()
		},
	}
}

func newListCmd(opts *rootOptions) *cobra.Command {
	var (
		query string
		sort  string
		page  int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show one page of students",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sortKey, err := service.ParseSortKey(sort)
			if err != nil {
				return err
			}

			a, err := openApp(opts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			view := a.students.ListStudents(service.Query{Text: query, Sort: sortKey, Page: page})
			renderView(cmd.OutOrStdout(), view)
			return nil
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "search by name, roll or branch")
	cmd.Flags().StringVarP(&sort, "sort", "s", "name", "sort by name, roll or cgpa")
	cmd.Flags().IntVarP(&page, "page", "p", 1, "page number")
	return cmd
}

func renderView(out io.Writer, view service.View) {
	if len(view.Items) == 0 {
		fmt.Fprintln(out, "No students found.")
	} else {
		rows := make([][]string, 0, len(view.Items))
		for _, s := range view.Items {
			rows = append(rows, []string{s.ID, s.Name, s.Roll, s.Branch, s.Year, formatCGPA(s.CGPA)})
		}
		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("ID", "Name", "Roll", "Branch", "Year", "CGPA").
			Rows(rows...)
		fmt.Fprintln(out, t.Render())
	}
	fmt.Fprintf(out, "Page %d / %d (%d students)\n", view.Page, view.TotalPages, view.Total)
}

func formatCGPA(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func parseCGPA(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid cgpa %q", s)
	}
	return &v, nil
}

type studentFlags struct {
	name, roll, email, year, branch, cgpa string
}

func (f *studentFlags) register(cmd *cobra.Command, defaultYear string) {
	cmd.Flags().StringVar(&f.name, "name", "", "student name")
	cmd.Flags().StringVar(&f.roll, "roll", "", "roll number")
	cmd.Flags().StringVar(&f.email, "email", "", "email address")
	cmd.Flags().StringVar(&f.year, "year", defaultYear, "year ("+strings.Join(model.Years, ", ")+")")
	cmd.Flags().StringVar(&f.branch, "branch", "", "branch")
	cmd.Flags().StringVar(&f.cgpa, "cgpa", "", "CGPA, empty for none")
}

// apply copies the flags the user set onto input.
func (f *studentFlags) apply(cmd *cobra.Command, input *model.StudentInput) error {
	changed := cmd.Flags().Changed
	if changed("name") {
		input.Name = f.name
	}
	if changed("roll") {
		input.Roll = f.roll
	}
	if changed("email") {
		input.Email = f.email
	}
	if changed("year") {
		input.Year = f.year
	}
	if changed("branch") {
		input.Branch = f.branch
	}
	if changed("cgpa") {
		cgpa, err := parseCGPA(f.cgpa)
		if err != nil {
			return err
		}
		input.CGPA = cgpa
	}
	return nil
}

// alert is an error whose text is shown to the user verbatim.
type alert string

func (a alert) Error() string { return string(a) }

func validationMessage(err error) error {
	var validationErr *service.ValidationError
	if errors.As(err, &validationErr) {
		return alert("Name and Roll are required")
	}
	return err
}

func newAddCmd(opts *rootOptions) *cobra.Command {
	flags := &studentFlags{}
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a student",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			input := model.StudentInput{Year: flags.year}
			if err := flags.apply(cmd, &input); err != nil {
				return err
			}

			a, err := openApp(opts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			student, err := a.students.Create(input)
			if err != nil {
				return validationMessage(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s)\n", student.Name, student.ID)
			return nil
		},
	}
	flags.register(cmd, model.DefaultYear)
	return cmd
}

func newEditCmd(opts *rootOptions) *cobra.Command {
	flags := &studentFlags{}
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a student; unset flags keep their current value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			current, err := a.students.Get(args[0])
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			input := current.Input()
			if err := flags.apply(cmd, &input); err != nil {
				return err
			}

			student, err := a.students.Edit(args[0], input)
			if err != nil {
				return validationMessage(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s (%s)\n", student.Name, student.ID)
			return nil
		},
	}
	flags.register(cmd, "")
	return cmd
}

// promptConfirmer asks on out and reads the answer from in.
func promptConfirmer(in io.Reader, out io.Writer) service.Confirmer {
	reader := bufio.NewReader(in)
	return service.ConfirmFunc(func(prompt string) bool {
		fmt.Fprintf(out, "%s [y/N]: ", prompt)
		answer, _ := reader.ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
			return true
		default:
			return false
		}
	})
}

func confirmer(cmd *cobra.Command, yes bool) service.Confirmer {
	if yes {
		return service.Always
	}
	return promptConfirmer(cmd.InOrStdin(), cmd.OutOrStdout())
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a student",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			err = a.students.Delete(args[0], confirmer(cmd, yes))
			switch {
			case errors.Is(err, service.ErrNotConfirmed):
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
				return nil
			case err != nil:
				return fmt.Errorf("%s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func newClearCmd(opts *rootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all students",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			err = a.students.Clear(confirmer(cmd, yes))
			switch {
			case errors.Is(err, service.ErrNotConfirmed):
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
				return nil
			case err != nil:
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All students cleared.")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import students from a JSON array; they are added in front of the list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			a, err := openApp(opts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			count, err := a.students.Import(data)
			if err != nil {
				var formatErr *codec.FormatError
				if errors.As(err, &formatErr) {
					return alert("Import error: " + formatErr.Reason)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d students\n", count)
			return nil
		},
	}
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all students as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			data, err := a.students.Export()
			if err != nil {
				return err
			}
			if out == "-" {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			}
			if err := os.WriteFile(out, data, 0644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", codec.ExportFileName, `output file, "-" for stdout`)
	return cmd
}
