package cli

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/r9s-ai/jsonlog/internal/logx"
	"github.com/r9s-ai/jsonlog/pkg/requestid"
	"github.com/r9s-ai/jsonlog/pkg/tokens"
)

type renderOptions struct {
	formatOptions

	method     string
	url        string
	status     int
	size       int64
	duration   time.Duration
	remoteAddr string
	reqHeaders []string
	resHeaders []string
	fields     []string
	requestID  string

	pretty  bool
	compact bool
}

func newRenderCmd() *cobra.Command {
	opts := renderOptions{}
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render one access log line for a synthetic request",
		Example: `  jsonlog render -f ":method :url :status :response-time ms"
  jsonlog render -p combined --status 404 -H "User-Agent: curl/8.0"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd.OutOrStdout(), opts, time.Now())
		},
	}
	fs := cmd.Flags()
	opts.bind(fs)
	fs.StringVarP(&opts.method, "method", "X", http.MethodGet, "request method")
	fs.StringVar(&opts.url, "url", "/", "request url")
	fs.IntVar(&opts.status, "status", http.StatusOK, "response status, 0 for no response")
	fs.Int64Var(&opts.size, "size", 0, "response body size in bytes")
	fs.DurationVar(&opts.duration, "duration", 12*time.Millisecond, "time until the response header was written")
	fs.StringVar(&opts.remoteAddr, "remote-addr", "127.0.0.1:52110", "client address")
	fs.StringArrayVarP(&opts.reqHeaders, "req-header", "H", nil, "request header \"Name: value\" (repeatable)")
	fs.StringArrayVar(&opts.resHeaders, "res-header", nil, "response header \"Name: value\" (repeatable)")
	fs.StringArrayVar(&opts.fields, "field", nil, "value for :field[key] as key=value (repeatable)")
	fs.StringVar(&opts.requestID, "request-id", "", "request id (generated when empty)")
	fs.BoolVar(&opts.pretty, "pretty", false, "indent the output")
	fs.BoolVar(&opts.compact, "compact", false, "never indent, even on a terminal")
	return cmd
}

func runRender(out io.Writer, opts renderOptions, now time.Time) error {
	f, err := opts.compile()
	if err != nil {
		return err
	}
	ctx, err := opts.context(now)
	if err != nil {
		return err
	}
	rec, err := f.Record(tokens.Default(), ctx)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}

	var b []byte
	if opts.pretty || (!opts.compact && logx.IsTerminal(out)) {
		b, err = gojson.MarshalIndentWithOption(rec, "", "  ", gojson.DisableHTMLEscape())
	} else {
		b, err = rec.MarshalJSON()
	}
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	_, err = fmt.Fprintln(out, string(b))
	return err
}

func (o renderOptions) context(now time.Time) (*tokens.Context, error) {
	req, err := http.NewRequest(strings.ToUpper(strings.TrimSpace(o.method)), o.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.RemoteAddr = o.remoteAddr
	for _, h := range o.reqHeaders {
		k, v, err := cutPair(h, ":")
		if err != nil {
			return nil, fmt.Errorf("--req-header: %w", err)
		}
		req.Header.Add(k, v)
	}

	res := http.Header{}
	for _, h := range o.resHeaders {
		k, v, err := cutPair(h, ":")
		if err != nil {
			return nil, fmt.Errorf("--res-header: %w", err)
		}
		res.Add(k, v)
	}
	if o.status != 0 && res.Get("Content-Length") == "" {
		res.Set("Content-Length", strconv.FormatInt(o.size, 10))
	}

	fields := make(map[string]any, len(o.fields))
	for _, kv := range o.fields {
		k, v, err := cutPair(kv, "=")
		if err != nil {
			return nil, fmt.Errorf("--field: %w", err)
		}
		fields[k] = v
	}

	id := strings.TrimSpace(o.requestID)
	if id == "" {
		id = requestid.Gen()
	}
	c := &tokens.Context{
		Request:   req,
		Status:    o.status,
		Header:    res,
		Size:      o.size,
		Start:     now.Add(-o.duration),
		End:       now,
		RequestID: id,
		Fields:    fields,
	}
	if o.status != 0 {
		c.HeaderWritten = now
	}
	return c, nil
}

func cutPair(s, sep string) (string, string, error) {
	k, v, ok := strings.Cut(s, sep)
	k = strings.TrimSpace(k)
	if !ok || k == "" {
		return "", "", fmt.Errorf("expected key%svalue, got %q", sep, s)
	}
	return k, strings.TrimSpace(v), nil
}
