// Package graph はGraphQLスキーマとHTTPハンドラーを提供する。
//
// スキーマは型とリゾルバーを明示的に組み立てる。保護が必要なミューテーションは
// Chainでガードを前置し、全てのリゾルバーのエラーはexposeErrorsで利用者向けに変換する。
package graph

import (
	"fmt"

	"github.com/graphql-go/graphql"

	"github.com/TGlide/sawit-server/internal/auth"
	"github.com/TGlide/sawit-server/internal/model"
	"github.com/TGlide/sawit-server/internal/session"
)

// NewSchema はリゾルバーを結び付けたGraphQLスキーマを生成する。
func NewSchema(r *Resolver) (graphql.Schema, error) {
	userType := newUserType()
	postType := newPostType(userType)
	fieldErrorType := newFieldErrorType()

	userResponseType := graphql.NewObject(graphql.ObjectConfig{
		Name: "UserResponse",
		Fields: graphql.Fields{
			"user": &graphql.Field{
				Type: userType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					resp, ok := p.Source.(*auth.UserResponse)
					if !ok || resp.User == nil {
						return nil, nil
					}
					return resp.User, nil
				},
			},
			"errors": &graphql.Field{
				Type: graphql.NewList(graphql.NewNonNull(fieldErrorType)),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					resp, ok := p.Source.(*auth.UserResponse)
					if !ok || len(resp.Errors) == 0 {
						return nil, nil
					}
					return resp.Errors, nil
				},
			},
		},
	})

	paginatedPostsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "PaginatedPosts",
		Fields: graphql.Fields{
			"posts": &graphql.Field{
				Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(postType))),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					page, ok := p.Source.(*model.PostPage)
					if !ok || page.Posts == nil {
						return []*model.Post{}, nil
					}
					return page.Posts, nil
				},
			},
			"hasMore": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Boolean),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					page, ok := p.Source.(*model.PostPage)
					return ok && page.HasMore, nil
				},
			},
			"nextCursor": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					page, ok := p.Source.(*model.PostPage)
					if !ok {
						return "", nil
					}
					return page.NextCursor(), nil
				},
			},
		},
	})

	usernamePasswordInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "UsernamePasswordInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"username": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
			"email":    &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
			"password": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
		},
	})

	postInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "PostInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"title": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
			"text":  &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
		},
	})

	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"hello": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.String),
				Resolve: r.hello,
			},
			"posts": &graphql.Field{
				Type: graphql.NewNonNull(paginatedPostsType),
				Args: graphql.FieldConfigArgument{
					"limit":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
					"cursor": &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: exposeErrors(r.posts),
			},
			"post": &graphql.Field{
				Type: postType,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: exposeErrors(r.post),
			},
			"me": &graphql.Field{
				Type:    userType,
				Resolve: exposeErrors(r.me),
			},
			"users": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(userType))),
				Resolve: exposeErrors(r.users),
			},
			"user": &graphql.Field{
				Type: userType,
				Args: graphql.FieldConfigArgument{
					"username": &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: exposeErrors(r.user),
			},
		},
	})

	mutation := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"register": &graphql.Field{
				Type: graphql.NewNonNull(userResponseType),
				Args: graphql.FieldConfigArgument{
					"options": &graphql.ArgumentConfig{Type: graphql.NewNonNull(usernamePasswordInput)},
				},
				Resolve: exposeErrors(r.register),
			},
			"login": &graphql.Field{
				Type: graphql.NewNonNull(userResponseType),
				Args: graphql.FieldConfigArgument{
					"usernameOrEmail": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"password":        &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: exposeErrors(r.login),
			},
			"logout": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.Boolean),
				Resolve: exposeErrors(r.logout),
			},
			"changePassword": &graphql.Field{
				Type: graphql.NewNonNull(userResponseType),
				Args: graphql.FieldConfigArgument{
					"token":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"newPassword": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: exposeErrors(r.changePassword),
			},
			"forgotPassword": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Boolean),
				Args: graphql.FieldConfigArgument{
					"email": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: exposeErrors(r.forgotPassword),
			},
			"createPost": &graphql.Field{
				Type: graphql.NewNonNull(postType),
				Args: graphql.FieldConfigArgument{
					"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(postInput)},
				},
				Resolve: exposeErrors(Chain(r.createPost, RequireAuth)),
			},
			"updatePost": &graphql.Field{
				Type: postType,
				Args: graphql.FieldConfigArgument{
					"id":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
					"title": &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: exposeErrors(r.updatePost),
			},
			"deletePost": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Boolean),
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: exposeErrors(r.deletePost),
			},
		},
	})

	schema, err := graphql.NewSchema(graphql.SchemaConfig{
		Query:    query,
		Mutation: mutation,
	})
	if err != nil {
		return graphql.Schema{}, fmt.Errorf("failed to build graphql schema: %w", err)
	}
	return schema, nil
}

func userSource(p graphql.ResolveParams) (*model.User, error) {
	u, ok := p.Source.(*model.User)
	if !ok || u == nil {
		return nil, fmt.Errorf("unexpected source %T for User", p.Source)
	}
	return u, nil
}

func postSource(p graphql.ResolveParams) (*model.Post, error) {
	post, ok := p.Source.(*model.Post)
	if !ok || post == nil {
		return nil, fmt.Errorf("unexpected source %T for Post", p.Source)
	}
	return post, nil
}

// newUserType はUser型を生成する。パスワードハッシュは公開しない。
// タイムスタンプはカーソルと同じエポックミリ秒の文字列で返す。
func newUserType() *graphql.Object {
	userField := func(typ graphql.Output, get func(u *model.User) interface{}) *graphql.Field {
		return &graphql.Field{
			Type: typ,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				u, err := userSource(p)
				if err != nil {
					return nil, err
				}
				return get(u), nil
			},
		}
	}

	return graphql.NewObject(graphql.ObjectConfig{
		Name: "User",
		Fields: graphql.Fields{
			"id": userField(graphql.NewNonNull(graphql.Int), func(u *model.User) interface{} {
				return int(u.ID)
			}),
			"username": userField(graphql.NewNonNull(graphql.String), func(u *model.User) interface{} {
				return u.Username
			}),
			// メールアドレスは本人のセッションにのみ返し、他人には空文字列を返す
			"email": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					u, err := userSource(p)
					if err != nil {
						return nil, err
					}
					if session.UserIDFromContext(p.Context) != u.ID {
						return "", nil
					}
					return u.Email, nil
				},
			},
			"createdAt": userField(graphql.NewNonNull(graphql.String), func(u *model.User) interface{} {
				return model.FormatCursor(u.CreatedAt)
			}),
			"updatedAt": userField(graphql.NewNonNull(graphql.String), func(u *model.User) interface{} {
				return model.FormatCursor(u.UpdatedAt)
			}),
		},
	})
}

func newPostType(userType *graphql.Object) *graphql.Object {
	postField := func(typ graphql.Output, get func(p *model.Post) interface{}) *graphql.Field {
		return &graphql.Field{
			Type: typ,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				post, err := postSource(p)
				if err != nil {
					return nil, err
				}
				return get(post), nil
			},
		}
	}

	return graphql.NewObject(graphql.ObjectConfig{
		Name: "Post",
		Fields: graphql.Fields{
			"id": postField(graphql.NewNonNull(graphql.Int), func(p *model.Post) interface{} {
				return int(p.ID)
			}),
			"title": postField(graphql.NewNonNull(graphql.String), func(p *model.Post) interface{} {
				return p.Title
			}),
			"text": postField(graphql.NewNonNull(graphql.String), func(p *model.Post) interface{} {
				return p.Text
			}),
			"textSnippet": postField(graphql.NewNonNull(graphql.String), func(p *model.Post) interface{} {
				return p.TextSnippet()
			}),
			"points": postField(graphql.NewNonNull(graphql.Int), func(p *model.Post) interface{} {
				return p.Points
			}),
			"creatorId": postField(graphql.NewNonNull(graphql.Int), func(p *model.Post) interface{} {
				return int(p.CreatorID)
			}),
			"creator": postField(graphql.NewNonNull(userType), func(p *model.Post) interface{} {
				return userOrNil(p.Creator)
			}),
			"createdAt": postField(graphql.NewNonNull(graphql.String), func(p *model.Post) interface{} {
				return model.FormatCursor(p.CreatedAt)
			}),
			"updatedAt": postField(graphql.NewNonNull(graphql.String), func(p *model.Post) interface{} {
				return model.FormatCursor(p.UpdatedAt)
			}),
		},
	})
}

func newFieldErrorType() *graphql.Object {
	fieldErrorField := func(get func(fe model.FieldError) string) *graphql.Field {
		return &graphql.Field{
			Type: graphql.NewNonNull(graphql.String),
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				switch fe := p.Source.(type) {
				case model.FieldError:
					return get(fe), nil
				case *model.FieldError:
					return get(*fe), nil
				}
				return nil, fmt.Errorf("unexpected source %T for FieldError", p.Source)
			},
		}
	}

	return graphql.NewObject(graphql.ObjectConfig{
		Name: "FieldError",
		Fields: graphql.Fields{
			"field": fieldErrorField(func(fe model.FieldError) string {
				return fe.Field
			}),
			"message": fieldErrorField(func(fe model.FieldError) string {
				return fe.Message
			}),
		},
	})
}
