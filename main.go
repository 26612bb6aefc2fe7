package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/hesusruiz/vcutils/yaml"
	"github.com/hesusruiz/wikicore/blobstore"
	"github.com/hesusruiz/wikicore/difftok"
	"github.com/hesusruiz/wikicore/highlight"
	"github.com/hesusruiz/wikicore/versiongraph"
	"github.com/hesusruiz/wikicore/versioning"
	"github.com/hesusruiz/wikicore/wiki"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

// session holds what every command needs: the logger and the configuration
type session struct {
	log *zap.SugaredLogger
	cfg *yaml.YAML
	c   *cli.Context
}

func newSession(c *cli.Context) (*session, error) {
	var z *zap.Logger
	var err error

	// Setup the logging system
	if c.Bool("debug") {
		z, err = zap.NewDevelopment()
	} else {
		z, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	sugar := z.Sugar()

	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		sugar.Sync()
		return nil, err
	}

	wiki.SetLogger(sugar)
	return &session{log: sugar, cfg: cfg, c: c}, nil
}

func (s *session) close() {
	s.log.Sync()
}

// action wraps a command so that it runs inside a session
func action(run func(s *session) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		s, err := newSession(c)
		if err != nil {
			return err
		}
		defer s.close()
		return run(s)
	}
}

func (s *session) arg(i int, name string) (string, error) {
	if s.c.Args().Len() <= i {
		return "", fmt.Errorf("missing argument %s", name)
	}
	return s.c.Args().Get(i), nil
}

func (s *session) intArg(i int, name string) (int, error) {
	v, err := s.arg(i, name)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("argument %s: %w", name, err)
	}
	return n, nil
}

func (s *session) formatOptions() *wiki.FormatOptions {
	opts := formatOptions(s.cfg)
	if s.c.Bool("camelcase") {
		opts.WithCamelCase = true
	}
	opts.BasePage = s.c.String("base")
	opts.NoFormat = s.c.Bool("noformat")
	return opts
}

func (s *session) parseFile(fileName string) (*wiki.Node, error) {
	start := time.Now()
	root, err := wiki.ParseFile(context.Background(), fileName, s.formatOptions())
	if err != nil {
		var perr *wiki.ParseError
		if errors.As(err, &perr) {
			s.log.Errorw("syntax error", "file", perr.Filename, "line", perr.Line, "column", perr.Column, "rule", perr.Rule)
		}
		return nil, err
	}
	s.log.Debugw("parsed", "file", fileName, "elapsed", time.Since(start))
	return root, nil
}

func parseCmd(s *session) error {
	fileName, err := s.arg(0, "FILE")
	if err != nil {
		return err
	}
	root, err := s.parseFile(fileName)
	if err != nil {
		return err
	}
	return root.Dump(s.c.App.Writer)
}

func highlightCmd(s *session) error {
	fileName, err := s.arg(0, "FILE")
	if err != nil {
		return err
	}
	root, err := s.parseFile(fileName)
	if err != nil {
		return err
	}
	tokens := highlight.Tokens(root)
	if s.c.Bool("html") {
		return highlight.HTML(s.c.App.Writer, tokens, s.c.String("style"))
	}
	return highlight.Format(s.c.App.Writer, tokens, s.c.String("formatter"), s.c.String("style"))
}

func diffCmd(s *session) error {
	from, err := s.arg(0, "FROM")
	if err != nil {
		return err
	}
	to, err := s.arg(1, "TO")
	if err != nil {
		return err
	}
	fromText, err := os.ReadFile(from)
	if err != nil {
		return err
	}
	toText, err := os.ReadFile(to)
	if err != nil {
		return err
	}

	granularity := difftok.ByChar
	if s.c.Bool("words") {
		granularity = difftok.ByWord
	}
	spans := difftok.Tokenize(string(fromText), string(toText), granularity)

	if s.c.Bool("color") {
		return highlight.Format(s.c.App.Writer, highlight.DiffTokens(spans), "terminal256", s.c.String("style"))
	}
	for _, sp := range spans {
		fmt.Fprintf(s.c.App.Writer, "%s\t%d\t%q\n", sp.Kind, sp.Pos, sp.Text)
	}
	return nil
}

func (s *session) openStore() (*blobstore.DirStore, error) {
	return blobstore.OpenDirStore(storeDir(s.c.String("store"), s.cfg))
}

// openOverview loads the versions of the page named by the first argument
func (s *session) openOverview() (*versioning.Overview, error) {
	page, err := s.arg(0, "PAGE")
	if err != nil {
		return nil, err
	}
	store, err := s.openStore()
	if err != nil {
		return nil, err
	}
	o := versioning.New(store, page, overviewOptions(s.cfg, s.log)...)
	if err := o.ReadOverview(); err != nil {
		return nil, err
	}
	return o, nil
}

func versionAddCmd(s *session) error {
	fileName, err := s.arg(1, "FILE")
	if err != nil {
		return err
	}
	content, err := os.ReadFile(fileName)
	if err != nil {
		return err
	}
	o, err := s.openOverview()
	if err != nil {
		return err
	}
	entry, err := o.AddVersion(content, s.c.String("message"))
	if entry.VersionNumber == 0 {
		// Nothing stored
		return err
	}
	if err != nil {
		s.log.Warnw("previous version kept complete", "page", o.Page(), "error", err)
	}
	if err := o.WriteOverview(); err != nil {
		return err
	}
	s.log.Infow("version added", "page", o.Page(), "version", entry.VersionNumber, "size", len(content))
	fmt.Fprintln(s.c.App.Writer, entry)
	return nil
}

func versionListCmd(s *session) error {
	o, err := s.openOverview()
	if err != nil {
		return err
	}
	for _, e := range o.Entries() {
		fmt.Fprintln(s.c.App.Writer, e)
	}
	return nil
}

func versionShowCmd(s *session) error {
	o, err := s.openOverview()
	if err != nil {
		return err
	}
	n := -1
	if s.c.Args().Len() > 1 {
		if n, err = s.intArg(1, "N"); err != nil {
			return err
		}
	}
	text, err := o.VersionContent(n)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(s.c.App.Writer, text)
	return err
}

func versionDeleteCmd(s *session) error {
	n, err := s.intArg(1, "N")
	if err != nil {
		return err
	}
	o, err := s.openOverview()
	if err != nil {
		return err
	}
	if err := o.DeleteVersion(n); err != nil {
		return err
	}
	return o.WriteOverview()
}

func versionRenameCmd(s *session) error {
	newPage, err := s.arg(1, "NEW")
	if err != nil {
		return err
	}
	o, err := s.openOverview()
	if err != nil {
		return err
	}
	page := o.Page()
	if err := o.RenameTo(newPage); err != nil {
		return err
	}
	s.log.Infow("versions renamed", "page", page, "newPage", newPage)
	return nil
}

func versionPurgeCmd(s *session) error {
	o, err := s.openOverview()
	if err != nil {
		return err
	}
	return o.Delete()
}

func versionCleanupCmd(s *session) error {
	page, err := s.arg(0, "PAGE")
	if err != nil {
		return err
	}
	store, err := s.openStore()
	if err != nil {
		return err
	}
	return versioning.DeleteBrokenData(store, page, s.log)
}

func versionGraphCmd(s *session) error {
	o, err := s.openOverview()
	if err != nil {
		return err
	}
	var out []byte
	if s.c.Bool("svg") {
		if out, err = versiongraph.Render(s.c.Context, o); err != nil {
			return err
		}
	} else {
		out = []byte(versiongraph.Source(o.Page(), o.Entries()))
	}

	if outputFileName := s.c.String("output"); outputFileName != "" {
		return os.WriteFile(outputFileName, out, 0664)
	}
	_, err = s.c.App.Writer.Write(out)
	return err
}

func parseFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "camelcase",
			Usage: "recognize CamelCase words as links",
		},
		&cli.StringFlag{
			Name:  "base",
			Usage: "resolve relative links against `PAGE`",
		},
		&cli.BoolFlag{
			Name:  "noformat",
			Usage: "do not parse markup, return the text as a single node",
		},
	}
}

func styleFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "style",
		Value: highlight.DefaultStyle,
		Usage: "chroma style `NAME`",
	}
}

func newApp() *cli.App {

	return &cli.App{
		Name:      "wikicore",
		Version:   "v0.1.0",
		Usage:     "parse wiki pages and keep their version history",
		UsageText: "wikicore [global options] command [command options] [arguments...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "read configuration from YAML `FILE`",
			},
			&cli.StringFlag{
				Name:    "store",
				Aliases: []string{"s"},
				Usage:   "keep versions in `DIR` (default is store.dir or " + defaultStoreDir + ")",
			},
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "run in debug mode",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "parse",
				Usage:     "dump the syntax tree of a page",
				ArgsUsage: "FILE",
				Flags:     parseFlags(),
				Action:    action(parseCmd),
			},
			{
				Name:      "highlight",
				Usage:     "print a page with its styling hints",
				ArgsUsage: "FILE",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:  "formatter",
						Value: "terminal256",
						Usage: "chroma formatter `NAME`",
					},
					&cli.BoolFlag{
						Name:  "html",
						Usage: "write HTML spans instead of using the formatter",
					},
					styleFlag(),
				}, parseFlags()...),
				Action: action(highlightCmd),
			},
			{
				Name:      "diff",
				Usage:     "compare two texts",
				ArgsUsage: "FROM TO",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "words",
						Usage: "compare words instead of characters",
					},
					&cli.BoolFlag{
						Name:  "color",
						Usage: "print the merged view with colors",
					},
					styleFlag(),
				},
				Action: action(diffCmd),
			},
			{
				Name:  "version",
				Usage: "manage the version history of pages",
				Subcommands: []*cli.Command{
					{
						Name:      "add",
						Usage:     "add the content of a file as new version",
						ArgsUsage: "PAGE FILE",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:    "message",
								Aliases: []string{"m"},
								Usage:   "description of the version",
							},
						},
						Action: action(versionAddCmd),
					},
					{
						Name:      "list",
						Usage:     "list the versions of a page",
						ArgsUsage: "PAGE",
						Action:    action(versionListCmd),
					},
					{
						Name:      "show",
						Usage:     "print a version, the newest by default",
						ArgsUsage: "PAGE [N]",
						Action:    action(versionShowCmd),
					},
					{
						Name:      "delete",
						Usage:     "delete the oldest or the newest version",
						ArgsUsage: "PAGE N",
						Action:    action(versionDeleteCmd),
					},
					{
						Name:      "rename",
						Usage:     "move the versions of a page to a new name",
						ArgsUsage: "PAGE NEW",
						Action:    action(versionRenameCmd),
					},
					{
						Name:      "purge",
						Usage:     "delete all versions of a page",
						ArgsUsage: "PAGE",
						Action:    action(versionPurgeCmd),
					},
					{
						Name:      "cleanup",
						Usage:     "delete version data left without overview",
						ArgsUsage: "PAGE",
						Action:    action(versionCleanupCmd),
					},
					{
						Name:      "graph",
						Usage:     "draw the revision chain of a page",
						ArgsUsage: "PAGE",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:    "output",
								Aliases: []string{"o"},
								Usage:   "write the diagram to `FILE`",
							},
							&cli.BoolFlag{
								Name:  "svg",
								Usage: "render SVG instead of D2 source",
							},
						},
						Action: action(versionGraphCmd),
					},
				},
			},
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "wikicore:", err)
		os.Exit(1)
	}
}
