package graph

import (
	"context"
	"errors"

	"github.com/graphql-go/graphql"

	"github.com/TGlide/sawit-server/internal/auth"
	"github.com/TGlide/sawit-server/internal/model"
	"github.com/TGlide/sawit-server/internal/post"
	"github.com/TGlide/sawit-server/internal/session"
)

// AuthService は認証フローのインターフェース。*auth.Service が満たす。
type AuthService interface {
	Register(ctx context.Context, sess auth.SessionHandle, input auth.RegisterInput) (*auth.UserResponse, error)
	Login(ctx context.Context, sess auth.SessionHandle, usernameOrEmail, password string) (*auth.UserResponse, error)
	Logout(ctx context.Context, sess auth.SessionHandle) bool
	ForgotPassword(ctx context.Context, email string) (bool, error)
	ChangePassword(ctx context.Context, sess auth.SessionHandle, token, newPassword string) (*auth.UserResponse, error)
}

// PostService は投稿操作のインターフェース。*post.Service が満たす。
type PostService interface {
	ListPosts(ctx context.Context, limit int, cursor string) (*model.PostPage, error)
	GetPost(ctx context.Context, id int64) (*model.Post, error)
	CreatePost(ctx context.Context, userID int64, input post.CreateInput) (*model.Post, error)
	UpdatePost(ctx context.Context, id int64, title *string) (*model.Post, error)
	DeletePost(ctx context.Context, id int64) bool
}

// UserService はユーザー参照のインターフェース。*user.Service が満たす。
type UserService interface {
	Me(ctx context.Context, userID int64) (*model.User, error)
	List(ctx context.Context) ([]*model.User, error)
	FindByUsername(ctx context.Context, username *string) (*model.User, error)
}

// Resolver はクエリとミューテーションのリゾルバーを保持する。
type Resolver struct {
	Auth  AuthService
	Posts PostService
	Users UserService
}

var errNoSession = errors.New("session not found in request context")

// sessionFrom はリクエストのセッションを返す。セッションミドルウェアを通っていない場合はエラー。
func sessionFrom(ctx context.Context) (*session.Session, error) {
	sess := session.FromContext(ctx)
	if sess == nil {
		return nil, errNoSession
	}
	return sess, nil
}

// optionalString は省略可能な文字列引数を取り出す。
func optionalString(args map[string]interface{}, name string) *string {
	v, ok := args[name].(string)
	if !ok {
		return nil
	}
	return &v
}

// userOrNil は*model.Userのnilを型なしnilにする。
func userOrNil(u *model.User) interface{} {
	if u == nil {
		return nil
	}
	return u
}

func postOrNil(p *model.Post) interface{} {
	if p == nil {
		return nil
	}
	return p
}

// --- Query ---

func (r *Resolver) hello(p graphql.ResolveParams) (interface{}, error) {
	return "hello world", nil
}

func (r *Resolver) posts(p graphql.ResolveParams) (interface{}, error) {
	limit, _ := p.Args["limit"].(int)
	cursor, _ := p.Args["cursor"].(string)
	return r.Posts.ListPosts(p.Context, limit, cursor)
}

func (r *Resolver) post(p graphql.ResolveParams) (interface{}, error) {
	id, _ := p.Args["id"].(int)
	found, err := r.Posts.GetPost(p.Context, int64(id))
	if err != nil {
		return nil, err
	}
	return postOrNil(found), nil
}

func (r *Resolver) me(p graphql.ResolveParams) (interface{}, error) {
	u, err := r.Users.Me(p.Context, session.UserIDFromContext(p.Context))
	if err != nil {
		return nil, err
	}
	return userOrNil(u), nil
}

func (r *Resolver) users(p graphql.ResolveParams) (interface{}, error) {
	return r.Users.List(p.Context)
}

func (r *Resolver) user(p graphql.ResolveParams) (interface{}, error) {
	u, err := r.Users.FindByUsername(p.Context, optionalString(p.Args, "username"))
	if err != nil {
		return nil, err
	}
	return userOrNil(u), nil
}

// --- Mutation ---

func (r *Resolver) register(p graphql.ResolveParams) (interface{}, error) {
	sess, err := sessionFrom(p.Context)
	if err != nil {
		return nil, err
	}
	options, _ := p.Args["options"].(map[string]interface{})
	input := auth.RegisterInput{}
	input.Username, _ = options["username"].(string)
	input.Email, _ = options["email"].(string)
	input.Password, _ = options["password"].(string)
	return r.Auth.Register(p.Context, sess, input)
}

func (r *Resolver) login(p graphql.ResolveParams) (interface{}, error) {
	sess, err := sessionFrom(p.Context)
	if err != nil {
		return nil, err
	}
	usernameOrEmail, _ := p.Args["usernameOrEmail"].(string)
	password, _ := p.Args["password"].(string)
	return r.Auth.Login(p.Context, sess, usernameOrEmail, password)
}

func (r *Resolver) logout(p graphql.ResolveParams) (interface{}, error) {
	sess, err := sessionFrom(p.Context)
	if err != nil {
		return nil, err
	}
	return r.Auth.Logout(p.Context, sess), nil
}

func (r *Resolver) changePassword(p graphql.ResolveParams) (interface{}, error) {
	sess, err := sessionFrom(p.Context)
	if err != nil {
		return nil, err
	}
	token, _ := p.Args["token"].(string)
	newPassword, _ := p.Args["newPassword"].(string)
	return r.Auth.ChangePassword(p.Context, sess, token, newPassword)
}

func (r *Resolver) forgotPassword(p graphql.ResolveParams) (interface{}, error) {
	email, _ := p.Args["email"].(string)
	return r.Auth.ForgotPassword(p.Context, email)
}

func (r *Resolver) createPost(p graphql.ResolveParams) (interface{}, error) {
	in, _ := p.Args["input"].(map[string]interface{})
	input := post.CreateInput{}
	input.Title, _ = in["title"].(string)
	input.Text, _ = in["text"].(string)
	return r.Posts.CreatePost(p.Context, session.UserIDFromContext(p.Context), input)
}

func (r *Resolver) updatePost(p graphql.ResolveParams) (interface{}, error) {
	id, _ := p.Args["id"].(int)
	updated, err := r.Posts.UpdatePost(p.Context, int64(id), optionalString(p.Args, "title"))
	if err != nil {
		return nil, err
	}
	return postOrNil(updated), nil
}

func (r *Resolver) deletePost(p graphql.ResolveParams) (interface{}, error) {
	id, _ := p.Args["id"].(int)
	return r.Posts.DeletePost(p.Context, int64(id)), nil
}
