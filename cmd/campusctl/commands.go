package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"campusconnect/pkg/client"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func (a *app) loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and remember the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if email == "" {
				return errors.New("--email is required")
			}
			if password == "" {
				password = os.Getenv("CAMPUS_PASSWORD")
			}
			if password == "" {
				var err error
				if password, err = readLine(cmd.InOrStdin(), cmd.OutOrStdout(), "Password: "); err != nil {
					return err
				}
			}

			c, _, err := a.client()
			if err != nil {
				return err
			}
			s, err := client.StartSession(cmd.Context(), c, client.Credentials{Email: email, Password: password})
			if err != nil {
				return err
			}
			defer s.Close()

			if err := a.persist(c, email); err != nil {
				return fmt.Errorf("save session: %w", err)
			}
			p := s.Profile()
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", p.FullName, p.Role)
			if fallback, reason := s.Fallback(); fallback {
				fmt.Fprintf(cmd.OutOrStdout(), "warning: using a minimal profile (%s)\n", reason)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (or CAMPUS_PASSWORD)")
	return cmd
}

func readLine(in io.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the saved session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, saved, err := a.client()
			if err != nil {
				return err
			}
			if saved == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in")
				return nil
			}
			if err := c.Logout(cmd.Context()); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "server logout failed: %v\n", err)
			}
			if err := os.Remove(a.stateFile); err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func (a *app) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current profile and permissions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.session(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			p := s.Profile()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "Name\t%s\n", p.FullName)
			fmt.Fprintf(w, "Email\t%s\n", p.Email)
			fmt.Fprintf(w, "Role\t%s\n", p.Role)
			if p.Department != "" {
				fmt.Fprintf(w, "Department\t%s\n", p.Department)
			}
			if p.StudentNumber != nil {
				fmt.Fprintf(w, "Student no.\t%s (year %d)\n", *p.StudentNumber, p.YearOfStudy)
			}
			if !p.CreatedAt.IsZero() {
				fmt.Fprintf(w, "Member since\t%s\n", humanize.Time(p.CreatedAt))
			}
			fmt.Fprintf(w, "Permissions\t%s\n", strings.Join(s.Permissions(), ", "))
			if fallback, reason := s.Fallback(); fallback {
				fmt.Fprintf(w, "Profile\tminimal (%s)\n", reason)
			}
			return w.Flush()
		},
	}
}

func (a *app) noticesCmd() *cobra.Command {
	var q client.NoticeQuery
	cmd := &cobra.Command{
		Use:   "notices",
		Short: "List notices visible to you",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var page *client.Page[client.Notice]
			err := a.call(func(c *client.Client) (err error) {
				page, err = c.Notices(cmd.Context(), q)
				return err
			})
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCATEGORY\tTITLE\tPUBLISHED\tEXPIRES")
			for _, n := range page.Items {
				title := n.Title
				if n.Pinned {
					title = "📌 " + title
				}
				expires := "-"
				if n.ExpiresAt != nil {
					expires = humanize.Time(*n.ExpiresAt)
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", n.ID, n.Category, title, humanize.Time(n.PublishedAt), expires)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s of %s notices\n", humanize.Comma(int64(len(page.Items))), humanize.Comma(page.Total))
			return nil
		},
	}
	cmd.Flags().StringVar(&q.Category, "category", "", "general, academic, exam, event or urgent")
	cmd.Flags().StringVarP(&q.Search, "search", "q", "", "search text")
	cmd.Flags().BoolVar(&q.IncludeExpired, "expired", false, "include expired notices (staff only)")
	cmd.Flags().IntVar(&q.Limit, "limit", 20, "page size")
	cmd.Flags().IntVar(&q.Offset, "offset", 0, "page offset")
	return cmd
}

func (a *app) eventsCmd() *cobra.Command {
	q := client.EventQuery{Scope: "upcoming"}
	var register uint
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List events or register for one",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if register != 0 {
				if err := a.call(func(c *client.Client) error {
					return c.RegisterForEvent(cmd.Context(), register)
				}); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered for event %d\n", register)
				return nil
			}

			var page *client.Page[client.Event]
			err := a.call(func(c *client.Client) (err error) {
				page, err = c.Events(cmd.Context(), q)
				return err
			})
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tWHERE\tWHEN\tSEATS\t")
			for _, e := range page.Items {
				seats := humanize.Comma(int64(e.AttendeeCount))
				if e.Capacity > 0 {
					seats += "/" + humanize.Comma(int64(e.Capacity))
				}
				mark := ""
				if e.Attending {
					mark = "✓"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s (%s)\t%s\t%s\n", e.ID, e.Title, e.Location,
					e.StartsAt.Local().Format("Mon 2 Jan 15:04"), humanize.Time(e.StartsAt), seats, mark)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&q.Scope, "scope", q.Scope, "upcoming, past or all")
	cmd.Flags().StringVar(&q.Category, "category", "", "event category")
	cmd.Flags().BoolVar(&q.Mine, "mine", false, "only events I registered for")
	cmd.Flags().IntVar(&q.Limit, "limit", 20, "page size")
	cmd.Flags().UintVar(&register, "register", 0, "register for the event with this ID")
	return cmd
}

func (a *app) dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Summarise campus activity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var d *client.Dashboard
			err := a.call(func(c *client.Client) (err error) {
				d, err = c.Dashboard(cmd.Context())
				return err
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Active notices:     %s\n", humanize.Comma(d.ActiveNotices))
			fmt.Fprintf(out, "Upcoming events:    %s\n", humanize.Comma(d.UpcomingEvents))
			fmt.Fprintf(out, "My registrations:   %s\n", humanize.Comma(d.MyRegistrations))
			fmt.Fprintf(out, "Forum posts (week): %s\n", humanize.Comma(d.ForumPostsThisWeek))
			if d.Students != nil {
				fmt.Fprintf(out, "Students:           %s\n", humanize.Comma(*d.Students))
			}
			if len(d.NextEvents) > 0 {
				fmt.Fprintln(out, "\nNext up:")
				for _, e := range d.NextEvents {
					fmt.Fprintf(out, "  %s  %s\n", humanize.Time(e.StartsAt), e.Title)
				}
			}
			if len(d.LatestNotices) > 0 {
				fmt.Fprintln(out, "\nLatest notices:")
				for _, n := range d.LatestNotices {
					fmt.Fprintf(out, "  [%s] %s\n", n.Category, n.Title)
				}
			}
			fmt.Fprintf(out, "\nas of %s\n", d.GeneratedAt.Local().Format(time.Kitchen))
			return nil
		},
	}
}
