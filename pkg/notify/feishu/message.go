package feishu

// Message 机器人消息
type Message interface {
	MsgType() string
	Body() any
}

// Element 富文本行内元素
type Element struct {
	Tag    string `json:"tag"`
	Text   string `json:"text,omitempty"`
	Href   string `json:"href,omitempty"`
	UserID string `json:"user_id,omitempty"`
}

func Text(s string) Element {
	return Element{Tag: "text", Text: s}
}

func Link(text, href string) Element {
	return Element{Tag: "a", Text: text, Href: href}
}

// AtAll @所有人
func AtAll() Element {
	return Element{Tag: "at", UserID: "all"}
}

// Post 富文本消息，只输出 zh_cn 语言块
type Post struct {
	Title string
	Lines [][]Element
}

func NewPost(title string) *Post {
	return &Post{Title: title, Lines: [][]Element{}}
}

// AddLine 追加一行，一行可以包含多个元素
func (p *Post) AddLine(elems ...Element) *Post {
	p.Lines = append(p.Lines, elems)
	return p
}

func (p *Post) MsgType() string {
	return "post"
}

type postContent struct {
	Title   string      `json:"title"`
	Content [][]Element `json:"content"`
}

type postBody struct {
	Post struct {
		ZhCN postContent `json:"zh_cn"`
	} `json:"post"`
}

func (p *Post) Body() any {
	var b postBody
	b.Post.ZhCN = postContent{Title: p.Title, Content: p.Lines}
	return b
}
