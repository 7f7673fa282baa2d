package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/anonto42/devforum/backend/internal/models"
	"github.com/anonto42/devforum/backend/internal/services"
	"github.com/anonto42/devforum/backend/internal/views"
	"github.com/anonto42/devforum/backend/pkg/config"
	"github.com/anonto42/devforum/backend/pkg/logging"
	"github.com/docopt/docopt-go"
)

const ForumCtlVersion = "0.1.0"

func main() {
	usage := `Forum control.

Reads the same configuration as the server (.env, app.yaml, environment).

Usage:
    forumctl search <term>
    forumctl trending
    forumctl bookmarks <uid>
    forumctl watch [--tag=<tag>] [--author=<uid>] [--limit=<n>] [--sort=<mode>]

Options:
    -h --help        Show this screen.
    --version        Show version.
    --tag=<tag>      Only posts with this tag.
    --author=<uid>   Only posts by this author.
    --limit=<n>      Maximum number of posts [default: 50].
    --sort=<mode>    newest, popular or discussed [default: newest].`

	opts, err := docopt.ParseArgs(usage, os.Args[1:], ForumCtlVersion)
	if err != nil {
		panic(err)
	}

	cfg, err := config.Load()
	if err != nil {
		fail(err)
	}
	logger, err := logging.New(cfg.Env)
	if err != nil {
		fail(err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := config.OpenStore(ctx, cfg, logger)
	if err != nil {
		fail(err)
	}
	defer store.Close()

	postService := services.NewPostService(store.Posts, store.Comments, store.Users, logger,
		services.WithDefaultFeedLimit(cfg.FeedDefaultLimit))

	if search_, _ := opts.Bool("search"); search_ {
		term, _ := opts.String("<term>")
		posts, err := postService.SearchPosts(ctx, term)
		if err != nil {
			fail(err)
		}
		printPosts(posts)
	} else if trending_, _ := opts.Bool("trending"); trending_ {
		posts, err := postService.GetTrendingPosts(ctx)
		if err != nil {
			fail(err)
		}
		printPosts(posts)
	} else if bookmarks_, _ := opts.Bool("bookmarks"); bookmarks_ {
		uid, _ := opts.String("<uid>")
		posts, err := postService.GetBookmarkedPosts(ctx, uid)
		if err != nil {
			fail(err)
		}
		printPosts(posts)
	} else if watch_, _ := opts.Bool("watch"); watch_ {
		watch(ctx, postService, opts)
	}
}

// watch redraws the feed on every snapshot until interrupted
func watch(ctx context.Context, postService *services.PostService, opts docopt.Opts) {
	var filter services.FeedFilter
	filter.Tag, _ = opts.String("--tag")
	filter.AuthorID, _ = opts.String("--author")
	limitStr, _ := opts.String("--limit")
	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		fail(fmt.Errorf("--limit must be int"))
	}
	filter.Limit = limit
	sortStr, _ := opts.String("--sort")

	feed := views.NewFeed(ctx, postService, func(st views.FeedState) {
		fmt.Print("\033[H\033[2J")
		switch {
		case st.Error != "":
			fmt.Fprintf(os.Stderr, "error: %s\n", st.Error)
		case st.Loading:
			fmt.Println("loading...")
		default:
			fmt.Printf("%d posts, sorted by %s\n\n", len(st.Posts), st.Sort)
			printPosts(st.Posts)
		}
	})
	defer feed.Close()
	feed.SetSort(models.ParseSortMode(sortStr))
	feed.SetFilter(filter)

	<-ctx.Done()
}

func printPosts(posts []models.Post) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tLIKES\tCOMMENTS\tVIEWS\tAUTHOR\tTITLE")
	for _, p := range posts {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			p.ID, p.CreatedAt.Format("2006-01-02 15:04"), p.LikeCount, p.CommentCount, p.Views, p.AuthorName, p.Title)
	}
	w.Flush()
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
