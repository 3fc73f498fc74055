// Package policy は記事リソースに対する認可判断を提供する。
// 判断ルールは全てここに集約し、ハンドラーやサービスに分散させない。
package policy

import (
	"github.com/hitoshi/blogapi/internal/model"
)

// Action は認可対象の操作を表す。
type Action string

const (
	ActionIndex   Action = "index"
	ActionShow    Action = "show"
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDestroy Action = "destroy"
)

// Authorize は認証主体が記事に対して操作を実行できるかを判断する。
// 許可ならnil、拒否なら理由を表す*model.APIErrorを返す。
//
// ルール:
//   - index / show: 常に許可（公開読み取り）。principalはnilでよい。
//   - create: 認証済みかつposts:write-ownアビリティを持つこと。
//     所有者はリクエストボディではなく認証主体から強制設定されるため、
//     ここでpostの所有者は見ない。
//   - update / destroy: 認証済みかつ記事の所有者であること。
func Authorize(principal *model.Principal, action Action, post *model.Post) error {
	switch action {
	case ActionIndex, ActionShow:
		return nil

	case ActionCreate:
		if principal == nil {
			return model.NewUnauthenticatedError()
		}
		if !principal.HasAbility(model.AbilityPostsWrite) {
			return model.NewForbiddenAbilityError(model.AbilityPostsWrite)
		}
		return nil

	case ActionUpdate, ActionDestroy:
		if principal == nil {
			return model.NewUnauthenticatedError()
		}
		if post == nil || principal.UserID != post.UserID {
			verb := "update"
			if action == ActionDestroy {
				verb = "delete"
			}
			return model.NewNotOwnerError(verb)
		}
		return nil
	}

	// 未知の操作はデフォルト拒否
	return model.NewUnauthenticatedError()
}
