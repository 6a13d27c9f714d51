package coyoteapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
)

// CreateVideoPost uploads the thumbnail and the video concurrently, then
// creates the post. If either upload fails the other is cancelled and no post
// request is made.
func (c *Client) CreateVideoPost(ctx context.Context, in PostInput) (Post, error) {
	const op = "videos.create"

	in, err := in.validate(op)
	if err != nil {
		return Post{}, err
	}
	if _, err := c.bearer(ctx, request{op: op, auth: authRequired}); err != nil {
		return Post{}, err
	}

	var thumbURL, videoURL string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := c.UploadFile(gctx, in.Thumbnail)
		thumbURL = u
		return err
	})
	g.Go(func() error {
		u, err := c.UploadFile(gctx, in.Video)
		videoURL = u
		return err
	})
	if err := g.Wait(); err != nil {
		c.log.Warn("videos.create.upload.fail", "err", err)
		return Post{}, err
	}

	body, err := c.do(ctx, request{
		op:     op,
		method: http.MethodPost,
		path:   "/videos",
		auth:   authRequired,
		json: postRequest{
			Title:     in.Title,
			Thumbnail: thumbURL,
			Video:     videoURL,
			Prompt:    in.Prompt,
			UserID:    in.UserID,
		},
	})
	if err != nil {
		return Post{}, err
	}
	post, err := decodePost(body)
	if err != nil {
		return Post{}, malformed(op, http.StatusOK, err)
	}
	c.log.Info("videos.create.success", "post_id", post.ID)
	return post, nil
}

// ListPosts returns the whole feed.
func (c *Client) ListPosts(ctx context.Context) ([]Post, error) {
	return c.listPosts(ctx, "videos.list", "/videos", nil)
}

// ListLatestPosts returns the most recent posts.
func (c *Client) ListLatestPosts(ctx context.Context) ([]Post, error) {
	return c.listPosts(ctx, "videos.latest", "/videos/latest", nil)
}

// SearchPosts searches posts by text. An empty query behaves as ListPosts.
func (c *Client) SearchPosts(ctx context.Context, query string) ([]Post, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return c.ListPosts(ctx)
	}
	return c.listPosts(ctx, "videos.search", "/videos/search", url.Values{"q": {query}})
}

// ListUserPosts returns the posts of one author.
func (c *Client) ListUserPosts(ctx context.Context, userID int64) ([]Post, error) {
	const op = "videos.user"
	if userID <= 0 {
		return nil, invalidInput(op, "user id must be a positive integer")
	}
	return c.listPosts(ctx, op, "/videos/user/"+strconv.FormatInt(userID, 10), nil)
}

func (c *Client) listPosts(ctx context.Context, op, path string, q url.Values) ([]Post, error) {
	body, err := c.do(ctx, request{
		op:     op,
		method: http.MethodGet,
		path:   path,
		query:  q,
		auth:   authRequired,
	})
	if err != nil {
		return nil, err
	}
	posts, err := decodePosts(body)
	if err != nil {
		return nil, malformed(op, http.StatusOK, err)
	}
	return posts, nil
}

// decodePost accepts the post object itself or one wrapped as "video" or "post".
func decodePost(body []byte) (Post, error) {
	var w struct {
		Video json.RawMessage `json:"video"`
		Post  json.RawMessage `json:"post"`
	}
	if err := decodeJSON(body, &w); err != nil {
		return Post{}, err
	}
	var p Post
	for _, raw := range []json.RawMessage{w.Post, w.Video} {
		if raw = bytes.TrimSpace(raw); len(raw) > 0 && raw[0] == '{' {
			err := json.Unmarshal(raw, &p)
			return p, err
		}
	}
	err := decodeJSON(body, &p)
	return p, err
}

// decodePosts accepts a bare array or an object wrapping it as "videos" or "posts".
func decodePosts(body []byte) ([]Post, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var posts []Post
		if err := decodeJSON(trimmed, &posts); err != nil {
			return nil, err
		}
		return posts, nil
	}

	var w struct {
		Videos *[]Post `json:"videos"`
		Posts  *[]Post `json:"posts"`
	}
	if err := decodeJSON(trimmed, &w); err != nil {
		return nil, err
	}
	switch {
	case w.Videos != nil:
		return *w.Videos, nil
	case w.Posts != nil:
		return *w.Posts, nil
	default:
		return nil, errors.New(`missing "videos"`)
	}
}
