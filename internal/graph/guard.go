package graph

import (
	"errors"
	"log/slog"

	"github.com/graphql-go/graphql"

	"github.com/TGlide/sawit-server/internal/model"
	"github.com/TGlide/sawit-server/internal/session"
)

// Guard はリゾルバーの実行前に評価される前提条件。
// エラーを返すとリゾルバーは実行されない。
type Guard func(p graphql.ResolveParams) error

// Chain はguardsを先頭から順に評価し、全て通過した場合のみresolveを実行する。
func Chain(resolve graphql.FieldResolveFn, guards ...Guard) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		for _, g := range guards {
			if err := g(p); err != nil {
				return nil, err
			}
		}
		return resolve(p)
	}
}

// RequireAuth はセッションにユーザーIDがない場合に認可エラーを返す。
func RequireAuth(p graphql.ResolveParams) error {
	if session.UserIDFromContext(p.Context) == 0 {
		return model.ErrNotAuthenticated
	}
	return nil
}

// exposeErrors はリゾルバーのエラーを利用者向けに変換する。
// model.APIErrorはメッセージをそのまま返し、それ以外は詳細をログにのみ残して
// 汎用の内部エラーに置き換える。
func exposeErrors(resolve graphql.FieldResolveFn) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		result, err := resolve(p)
		if err == nil {
			return result, nil
		}

		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			return nil, apiErr
		}

		slog.ErrorContext(p.Context, "graphql resolver failed",
			slog.String("field", p.Info.FieldName),
			slog.String("error", err.Error()),
		)
		return nil, model.NewInternalError()
	}
}
