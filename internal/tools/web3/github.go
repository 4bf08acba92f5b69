package web3

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"web3agent/internal/config"
	"web3agent/internal/tools"
	"web3agent/pkg/httputil"
)

// GitHubProvider GitHub 仓库分析类别提供方
type GitHubProvider struct {
	cfg config.GitHubConfig
}

// NewGitHubProvider 创建 GitHub 提供方
func NewGitHubProvider(cfg config.GitHubConfig) *GitHubProvider {
	return &GitHubProvider{cfg: cfg}
}

// Category 实现 CategoryProvider
func (p *GitHubProvider) Category() tools.Category {
	return tools.CategoryGitHub
}

// Tools 构造 GitHub 类别的工具
func (p *GitHubProvider) Tools(ctx context.Context) ([]tools.Tool, error) {
	if strings.TrimSpace(p.cfg.APIURL) == "" {
		return nil, fmt.Errorf("GitHub 未配置 api_url")
	}
	client := &githubClient{
		apiURL: strings.TrimRight(p.cfg.APIURL, "/"),
		token:  p.cfg.Token,
		http:   httputil.NewClient(httputil.WithRetries(2)),
	}
	return []tools.Tool{
		&githubIssuesTool{client: client},
		&githubPullRequestsTool{client: client},
		&githubCommitsTool{client: client},
	}, nil
}

type githubClient struct {
	apiURL string
	token  string
	http   *httputil.Client
}

// getJSON 带可选令牌的 GET 请求
func (c *githubClient) getJSON(ctx context.Context, path string, query url.Values, result any) error {
	endpoint := c.apiURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	headers := map[string]string{"Accept": "application/vnd.github+json"}
	if c.token != "" {
		headers["Authorization"] = "Bearer " + c.token
	}
	return c.http.GetJSONWithHeaders(ctx, endpoint, headers, result)
}

// validateRepo 仓库标识必须是 owner/name 形式
func validateRepo(repo string) error {
	parts := strings.Split(repo, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("仓库标识格式非法，应为 owner/name: %s", repo)
	}
	return nil
}

type githubIssue struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	State  string `json:"state"`
	User   struct {
		Login string `json:"login"`
	} `json:"user"`
	CreatedAt   string `json:"created_at"`
	HTMLURL     string `json:"html_url"`
	PullRequest *struct {
		URL string `json:"url"`
	} `json:"pull_request"`
}

// githubIssuesTool 列出仓库 Issue
type githubIssuesTool struct {
	client *githubClient
}

func (t *githubIssuesTool) Definition() *tools.Definition {
	return &tools.Definition{
		Name:        "github_issues",
		DisplayName: "GitHub Issue列表",
		Description: "查询 GitHub 仓库的 Issue 列表",
		Category:    tools.CategoryGitHub,
		Parameters: objectSchema(map[string]any{
			"repo":  map[string]any{"type": "string", "description": "仓库标识，owner/name"},
			"state": map[string]any{"type": "string", "description": "open / closed / all，默认 open"},
			"limit": map[string]any{"type": "number", "description": "返回条数，默认 10"},
		}, "repo"),
	}
}

func (t *githubIssuesTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	repo, err := stringParam(params, "repo")
	if err != nil {
		return nil, err
	}
	if err := validateRepo(repo); err != nil {
		return nil, err
	}
	state := stringParamOr(params, "state", "open")
	limit := intParamOr(params, "limit", 10)

	query := url.Values{}
	query.Set("state", state)
	query.Set("per_page", fmt.Sprintf("%d", limit))

	var issues []githubIssue
	if err := t.client.getJSON(ctx, "/repos/"+repo+"/issues", query, &issues); err != nil {
		return &tools.Result{Err: fmt.Sprintf("查询 Issue 失败: %s", err.Error())}, nil
	}

	// Issue 列表接口会混入 PR，需要过滤
	items := make([]map[string]any, 0, len(issues))
	for _, issue := range issues {
		if issue.PullRequest != nil {
			continue
		}
		items = append(items, map[string]any{
			"number":     issue.Number,
			"title":      issue.Title,
			"state":      issue.State,
			"author":     issue.User.Login,
			"created_at": issue.CreatedAt,
			"url":        issue.HTMLURL,
		})
	}
	return &tools.Result{Output: map[string]any{
		"repo":   repo,
		"state":  state,
		"count":  len(items),
		"issues": items,
	}}, nil
}

type githubPull struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	State  string `json:"state"`
	User   struct {
		Login string `json:"login"`
	} `json:"user"`
	CreatedAt string `json:"created_at"`
	MergedAt  string `json:"merged_at"`
	HTMLURL   string `json:"html_url"`
}

// githubPullRequestsTool 列出仓库 PR
type githubPullRequestsTool struct {
	client *githubClient
}

func (t *githubPullRequestsTool) Definition() *tools.Definition {
	return &tools.Definition{
		Name:        "github_pull_requests",
		DisplayName: "GitHub PR列表",
		Description: "查询 GitHub 仓库的 Pull Request 列表",
		Category:    tools.CategoryGitHub,
		Parameters: objectSchema(map[string]any{
			"repo":  map[string]any{"type": "string", "description": "仓库标识，owner/name"},
			"state": map[string]any{"type": "string", "description": "open / closed / all，默认 open"},
			"limit": map[string]any{"type": "number", "description": "返回条数，默认 10"},
		}, "repo"),
	}
}

func (t *githubPullRequestsTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	repo, err := stringParam(params, "repo")
	if err != nil {
		return nil, err
	}
	if err := validateRepo(repo); err != nil {
		return nil, err
	}
	state := stringParamOr(params, "state", "open")
	limit := intParamOr(params, "limit", 10)

	query := url.Values{}
	query.Set("state", state)
	query.Set("per_page", fmt.Sprintf("%d", limit))

	var pulls []githubPull
	if err := t.client.getJSON(ctx, "/repos/"+repo+"/pulls", query, &pulls); err != nil {
		return &tools.Result{Err: fmt.Sprintf("查询 PR 失败: %s", err.Error())}, nil
	}

	items := make([]map[string]any, 0, len(pulls))
	for _, pr := range pulls {
		items = append(items, map[string]any{
			"number":     pr.Number,
			"title":      pr.Title,
			"state":      pr.State,
			"author":     pr.User.Login,
			"created_at": pr.CreatedAt,
			"merged_at":  pr.MergedAt,
			"url":        pr.HTMLURL,
		})
	}
	return &tools.Result{Output: map[string]any{
		"repo":          repo,
		"state":         state,
		"count":         len(items),
		"pull_requests": items,
	}}, nil
}

type githubCommit struct {
	SHA    string `json:"sha"`
	Commit struct {
		Message string `json:"message"`
		Author  struct {
			Name string `json:"name"`
			Date string `json:"date"`
		} `json:"author"`
	} `json:"commit"`
	HTMLURL string `json:"html_url"`
}

// githubCommitsTool 列出仓库最近提交
type githubCommitsTool struct {
	client *githubClient
}

func (t *githubCommitsTool) Definition() *tools.Definition {
	return &tools.Definition{
		Name:        "github_commits",
		DisplayName: "GitHub提交历史",
		Description: "查询 GitHub 仓库最近的提交记录",
		Category:    tools.CategoryGitHub,
		Parameters: objectSchema(map[string]any{
			"repo":   map[string]any{"type": "string", "description": "仓库标识，owner/name"},
			"branch": map[string]any{"type": "string", "description": "分支名，默认仓库默认分支"},
			"limit":  map[string]any{"type": "number", "description": "返回条数，默认 10"},
		}, "repo"),
	}
}

func (t *githubCommitsTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	repo, err := stringParam(params, "repo")
	if err != nil {
		return nil, err
	}
	if err := validateRepo(repo); err != nil {
		return nil, err
	}
	branch := stringParamOr(params, "branch", "")
	limit := intParamOr(params, "limit", 10)

	query := url.Values{}
	query.Set("per_page", fmt.Sprintf("%d", limit))
	if branch != "" {
		query.Set("sha", branch)
	}

	var commits []githubCommit
	if err := t.client.getJSON(ctx, "/repos/"+repo+"/commits", query, &commits); err != nil {
		return &tools.Result{Err: fmt.Sprintf("查询提交失败: %s", err.Error())}, nil
	}

	items := make([]map[string]any, 0, len(commits))
	for _, commit := range commits {
		message := commit.Commit.Message
		if idx := strings.IndexByte(message, '\n'); idx >= 0 {
			message = message[:idx]
		}
		items = append(items, map[string]any{
			"sha":     commit.SHA,
			"message": message,
			"author":  commit.Commit.Author.Name,
			"date":    commit.Commit.Author.Date,
			"url":     commit.HTMLURL,
		})
	}
	return &tools.Result{Output: map[string]any{
		"repo":    repo,
		"count":   len(items),
		"commits": items,
	}}, nil
}
