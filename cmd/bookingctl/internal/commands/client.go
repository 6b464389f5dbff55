package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"

	"github.com/aquamarinepk/aqm"
)

// Actor identifies the operator the CLI signs in as.
type Actor struct {
	ID    string `json:"id"`
	Role  string `json:"role"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Booking is the subset of a booking record the CLI renders.
type Booking struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Archived bool   `json:"archived"`
	Client   struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"client"`
	Packages []struct {
		Title string  `json:"title"`
		Price float64 `json:"price"`
	} `json:"packages"`
	Guests          int     `json:"guests"`
	BookingDate     string  `json:"booking_date"`
	TotalAmount     float64 `json:"total_amount"`
	AdminNotes      string  `json:"admin_notes"`
	SpecialRequests string  `json:"special_requests"`
}

type bookingList struct {
	Bookings []Booking `json:"bookings"`
	Count    int       `json:"count"`
	Applied  bool      `json:"applied"`
}

// Client drives a bookingsync service over its HTTP API.
type Client struct {
	client *aqm.ServiceClient
	out    io.Writer
	logger aqm.Logger
}

func NewClient(client *aqm.ServiceClient, out io.Writer, logger aqm.Logger) *Client {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Client{
		client: client,
		out:    out,
		logger: logger,
	}
}

func (c *Client) SignIn(ctx context.Context, actor Actor) error {
	if actor.ID == "" || actor.Role == "" {
		return fmt.Errorf("actor.id and actor.role are required")
	}
	_, err := c.client.Request(ctx, "PUT", "/session", actor)
	if err != nil {
		return fmt.Errorf("sign in as %s: %w", actor.ID, err)
	}
	c.logger.Debug("signed in", "actor_id", actor.ID, "role", actor.Role)
	return nil
}

// List reloads the administrator scope with filters and prints the projection.
func (c *Client) List(ctx context.Context, filters url.Values) error {
	query := url.Values{}
	for k, v := range filters {
		query[k] = v
	}
	// A bare refresh repeats the server's last query; list always sends one.
	if query.Get("scope") == "" {
		query.Set("scope", "active")
	}
	return c.printList(ctx, "POST", "/bookings/refresh?"+query.Encode())
}

// Mine reloads the bookings owned by the signed-in client.
func (c *Client) Mine(ctx context.Context) error {
	return c.printList(ctx, "POST", "/bookings/refresh")
}

func (c *Client) printList(ctx context.Context, method, path string) error {
	resp, err := c.client.Request(ctx, method, path, nil)
	if err != nil {
		return fmt.Errorf("list bookings: %w", err)
	}

	var list bookingList
	if err := decode(resp, &list); err != nil {
		return err
	}
	if !list.Applied {
		c.logger.Info("list result was superseded, showing current view")
	}
	return renderBookings(c.out, list.Bookings)
}

func (c *Client) Show(ctx context.Context, id string) error {
	b, err := c.command(ctx, "GET", fmt.Sprintf("/bookings/%s", id), nil)
	if err != nil {
		return err
	}
	return renderBooking(c.out, b)
}

func (c *Client) SetStatus(ctx context.Context, id, status string) error {
	return c.printCommand(ctx, "PATCH", fmt.Sprintf("/bookings/%s/status", id), map[string]string{"status": status})
}

func (c *Client) RequestCancellation(ctx context.Context, id string) error {
	return c.printCommand(ctx, "POST", fmt.Sprintf("/bookings/%s/request-cancellation", id), nil)
}

func (c *Client) Archive(ctx context.Context, id, reason string) error {
	return c.printCommand(ctx, "PATCH", fmt.Sprintf("/bookings/%s/archive", id), map[string]string{"reason": reason})
}

func (c *Client) Restore(ctx context.Context, id string) error {
	return c.printCommand(ctx, "PATCH", fmt.Sprintf("/bookings/%s/restore", id), nil)
}

func (c *Client) SaveNotes(ctx context.Context, id, text string) error {
	return c.printCommand(ctx, "PATCH", fmt.Sprintf("/bookings/%s/notes", id), map[string]string{"admin_notes": text})
}

func (c *Client) ResendConfirmation(ctx context.Context, id string) error {
	if _, err := c.client.Request(ctx, "POST", fmt.Sprintf("/bookings/%s/resend-confirmation", id), nil); err != nil {
		return fmt.Errorf("resend confirmation for %s: %w", id, err)
	}
	fmt.Fprintf(c.out, "confirmation resent for %s\n", id)
	return nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	if _, err := c.client.Request(ctx, "DELETE", fmt.Sprintf("/bookings/%s", id), nil); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	fmt.Fprintf(c.out, "deleted %s\n", id)
	return nil
}

// Destroy permanently deletes a booking. Without confirmed the request is not sent.
func (c *Client) Destroy(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return fmt.Errorf("destroy %s: pass --yes to confirm permanent deletion", id)
	}
	if _, err := c.client.Request(ctx, "DELETE", fmt.Sprintf("/bookings/%s/permanent?confirm=true", id), nil); err != nil {
		return fmt.Errorf("destroy %s: %w", id, err)
	}
	fmt.Fprintf(c.out, "permanently deleted %s\n", id)
	return nil
}

func (c *Client) Counts(ctx context.Context, scope string) error {
	path := "/bookings/counts"
	if scope != "" {
		path += "?" + url.Values{"scope": {scope}}.Encode()
	}
	resp, err := c.client.Request(ctx, "GET", path, nil)
	if err != nil {
		return fmt.Errorf("count bookings: %w", err)
	}

	counts := map[string]int{}
	if err := decode(resp, &counts); err != nil {
		return err
	}
	return renderCounts(c.out, counts)
}

func (c *Client) printCommand(ctx context.Context, method, path string, body interface{}) error {
	b, err := c.command(ctx, method, path, body)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s is now %s\n", b.ID, describe(b))
	return nil
}

func (c *Client) command(ctx context.Context, method, path string, body interface{}) (*Booking, error) {
	resp, err := c.client.Request(ctx, method, path, body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	var b Booking
	if err := decode(resp, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func decode(resp *aqm.SuccessResponse, dest interface{}) error {
	if resp == nil || resp.Data == nil {
		return fmt.Errorf("empty response")
	}
	data, err := json.Marshal(resp.Data)
	if err != nil {
		return fmt.Errorf("cannot encode response: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("cannot decode response: %w", err)
	}
	return nil
}

func describe(b *Booking) string {
	if b.Archived {
		return b.Status + " (archived)"
	}
	return b.Status
}
