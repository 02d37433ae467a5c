// Package activity — classifier.go сопоставляет событие типу действия.
package activity

import "serotonyl.ru/devscore/internal/features/ledger"

const (
	actionPushedTo    = "pushed to"
	actionPushedNew   = "pushed new"
	actionOpened      = "opened"
	actionClosed      = "closed"
	actionCommentedOn = "commented on"

	targetIssue        = "Issue"
	targetMergeRequest = "MergeRequest"
)

// Classify возвращает тип действия для события или false, если событие не учитывается.
//
// Правила проверяются строго по порядку, срабатывает первое:
//  1. "pushed to" / "pushed new"            → Commit
//  2. Issue + "opened"                      → IssueOpened
//  3. Issue + "closed"                      → IssueSolved
//  4. MergeRequest + "opened"               → MergeRequest
//  5. "commented on"                        → Comment
//
// Каждое событие даёт не больше одного типа.
func Classify(e Event) (ledger.ActionType, bool) {
	switch {
	case e.ActionName == actionPushedTo || e.ActionName == actionPushedNew:
		return ledger.Commit, true
	case e.TargetType == targetIssue && e.ActionName == actionOpened:
		return ledger.IssueOpened, true
	case e.TargetType == targetIssue && e.ActionName == actionClosed:
		return ledger.IssueSolved, true
	case e.TargetType == targetMergeRequest && e.ActionName == actionOpened:
		return ledger.MergeRequest, true
	case e.ActionName == actionCommentedOn:
		return ledger.Comment, true
	}
	return 0, false
}
