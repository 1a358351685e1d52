package bitbucket

// ListResponse is a paginated Bitbucket Cloud list response. Next is
// an opaque absolute URL cursor, empty on the last page.
type ListResponse[T any] struct {
	Values  []T    `json:"values"`
	Next    string `json:"next"`
	Page    int    `json:"page"`
	PageLen int    `json:"pagelen"`
	Size    int    `json:"size"`
}

// PullRequest is a Bitbucket Cloud pull request.
type PullRequest struct {
	ID           int           `json:"id"`
	Title        string        `json:"title"`
	State        string        `json:"state"` // OPEN, MERGED, DECLINED
	Draft        bool          `json:"draft"`
	Author       User          `json:"author"`
	CreatedOn    string        `json:"created_on"`
	Source       Endpoint      `json:"source"`
	Destination  Endpoint      `json:"destination"`
	Links        Links         `json:"links"`
	Participants []Participant `json:"participants"`
}

// Endpoint is the source or destination side of a pull request.
type Endpoint struct {
	Branch Branch `json:"branch"`
}

// Branch is a branch reference.
type Branch struct {
	Name string `json:"name"`
}

// Links holds the hyperlinks attached to an API entity.
type Links struct {
	HTML Link `json:"html"`
}

// Link is a single hyperlink.
type Link struct {
	Href string `json:"href"`
}

// User is a Bitbucket Cloud account.
type User struct {
	DisplayName string `json:"display_name"`
	Nickname    string `json:"nickname"`
	Username    string `json:"username"`
	AccountID   string `json:"account_id"`
}

// Participant is a user's involvement on a pull request, including
// whether they approved it.
type Participant struct {
	User     User   `json:"user"`
	Role     string `json:"role"`
	Approved bool   `json:"approved"`
}

// Commit is a commit on a pull request.
type Commit struct {
	Hash    string       `json:"hash"`
	Message string       `json:"message"`
	Author  CommitAuthor `json:"author"`
	Date    string       `json:"date"`
	Links   Links        `json:"links"`
}

// CommitAuthor carries both the mapped account and the raw signature.
type CommitAuthor struct {
	User *User  `json:"user"`
	Raw  string `json:"raw"`
}

// ErrorResponse is the Bitbucket Cloud error response format.
type ErrorResponse struct {
	Type  string `json:"type"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}
