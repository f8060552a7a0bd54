package dynamodb

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kondrei/TalkieMartin-BE/domain/memory"
	"github.com/kondrei/TalkieMartin-BE/pkg/errors"
)

// DynamoDB caps TransactWriteItems at 100 items
const maxTransactItems = 100

// deletePendingAttr holds the token of the delete that claimed a record.
// Appends are rejected while it is set.
const deletePendingAttr = "DeletePending"

// Bounds the single resend of a commit whose outcome is unknown
const commitResendTimeout = 5 * time.Second

type stagedKind int

const (
	stagedInsert stagedKind = iota
	stagedAppend
	stagedDelete
)

type staged struct {
	kind  stagedKind
	title string
}

type txState int

const (
	txOpen txState = iota
	txCommitted
	txAborted
)

// Transaction is a DynamoDB unit of work. Writes are collected as
// TransactWriteItems and sent in a single call at Commit; reads go straight
// to the table with strong consistency. Conditions on each staged write
// detect concurrent changes between the read and the commit.
type Transaction struct {
	repo    *MemoryRepository
	items   []types.TransactWriteItem
	staged  []staged
	token   string
	state   txState
	claimed string // title claimed by FindAndDelete
	now     func() time.Time
}

func newTransaction(repo *MemoryRepository) *Transaction {
	return &Transaction{
		repo:  repo,
		items: make([]types.TransactWriteItem, 0, 1),
		token: uuid.NewString(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (t *Transaction) register(item types.TransactWriteItem, s staged) error {
	if t.state != txOpen {
		return errors.NewTransactionError("stage", fmt.Errorf("transaction is no longer open"))
	}
	if len(t.items) >= maxTransactItems {
		return errors.NewTransactionError("stage", fmt.Errorf("transaction exceeds %d items", maxTransactItems))
	}
	t.items = append(t.items, item)
	t.staged = append(t.staged, s)
	return nil
}

// Insert stages a conditional put. A consistent read first rejects titles
// that are already taken so callers can fail before uploading anything;
// the put condition still guards against a racing insert.
func (t *Transaction) Insert(ctx context.Context, record *memory.Record) error {
	_, found, err := t.repo.getItem(ctx, record.Title)
	if err != nil {
		return err
	}
	if found {
		return errors.NewDuplicateKeyError(record.Title)
	}

	av, err := attributevalue.MarshalMap(toItem(record))
	if err != nil {
		return errors.NewTransactionError("marshal", fmt.Errorf("failed to marshal memory: %w", err))
	}

	cond := expression.AttributeNotExists(expression.Name("PK"))
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return errors.NewTransactionError("build condition", err)
	}

	return t.register(types.TransactWriteItem{
		Put: &types.Put{
			TableName:                 aws.String(t.repo.tableName),
			Item:                      av,
			ConditionExpression:       expr.Condition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		},
	}, staged{kind: stagedInsert, title: record.Title})
}

// FindByTitle reads the committed record
func (t *Transaction) FindByTitle(ctx context.Context, title string) (*memory.Record, error) {
	return t.repo.FindByTitle(ctx, title)
}

// AppendContentItems stages an atomic list_append on the record's content
// list. Concurrent appends both land because the update is applied to the
// list as stored at commit time, not to the copy read here.
func (t *Transaction) AppendContentItems(ctx context.Context, title string, items []memory.ContentItem) (*memory.Record, error) {
	current, err := t.repo.FindByTitle(ctx, title)
	if err != nil {
		return nil, err
	}

	now := t.now()
	update := expression.
		Set(
			expression.Name("MemoryContent"),
			expression.ListAppend(
				expression.IfNotExists(expression.Name("MemoryContent"), expression.Value([]contentItem{})),
				expression.Value(toContentItems(items)),
			),
		).
		Set(expression.Name("UpdatedAt"), expression.Value(now.Format(time.RFC3339Nano))).
		Add(expression.Name("Version"), expression.Value(1))
	cond := expression.AttributeExists(expression.Name("PK")).
		And(expression.AttributeNotExists(expression.Name(deletePendingAttr)))

	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return nil, errors.NewTransactionError("build update", err)
	}

	err = t.register(types.TransactWriteItem{
		Update: &types.Update{
			TableName:                           aws.String(t.repo.tableName),
			Key:                                 memoryKey(title),
			UpdateExpression:                    expr.Update(),
			ConditionExpression:                 expr.Condition(),
			ExpressionAttributeNames:            expr.Names(),
			ExpressionAttributeValues:           expr.Values(),
			ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
		},
	}, staged{kind: stagedAppend, title: title})
	if err != nil {
		return nil, err
	}

	projected := current.Clone()
	projected.MemoryContent = append(projected.MemoryContent, items...)
	projected.Version++
	projected.UpdatedAt = now
	return &projected, nil
}

// FindAndDelete reads the record, claims it for deletion and stages the
// delete. The claim is written immediately and only if the record still has
// the version just read, so every append that could add objects either
// landed before the read or is rejected at its own commit. Abort releases
// the claim when the delete does not commit.
func (t *Transaction) FindAndDelete(ctx context.Context, title string) (*memory.Record, error) {
	if t.state != txOpen {
		return nil, errors.NewTransactionError("stage", fmt.Errorf("transaction is no longer open"))
	}

	current, err := t.repo.FindByTitle(ctx, title)
	if err != nil {
		return nil, err
	}

	if err := t.claim(ctx, title, current.Version); err != nil {
		return nil, err
	}

	cond := expression.Name("Version").Equal(expression.Value(current.Version)).
		And(expression.Name(deletePendingAttr).Equal(expression.Value(t.token)))
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return nil, errors.NewTransactionError("build condition", err)
	}

	err = t.register(types.TransactWriteItem{
		Delete: &types.Delete{
			TableName:                 aws.String(t.repo.tableName),
			Key:                       memoryKey(title),
			ConditionExpression:       expr.Condition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		},
	}, staged{kind: stagedDelete, title: title})
	if err != nil {
		return nil, err
	}

	return current, nil
}

// claim marks the record with this transaction's token. A stale claim left
// by a crashed delete is taken over.
func (t *Transaction) claim(ctx context.Context, title string, version int) error {
	update := expression.Set(expression.Name(deletePendingAttr), expression.Value(t.token))
	cond := expression.Name("Version").Equal(expression.Value(version))
	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return errors.NewTransactionError("build claim", err)
	}

	_, err = t.repo.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                           aws.String(t.repo.tableName),
		Key:                                 memoryKey(title),
		UpdateExpression:                    expr.Update(),
		ConditionExpression:                 expr.Condition(),
		ExpressionAttributeNames:            expr.Names(),
		ExpressionAttributeValues:           expr.Values(),
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		var failed *types.ConditionalCheckFailedException
		if stderrors.As(err, &failed) {
			if len(failed.Item) == 0 {
				return errors.NewNotFoundError(title)
			}
			return errors.NewConflictError(title)
		}
		return errors.NewTransactionError("claim", err)
	}

	t.claimed = title
	return nil
}

// release removes this transaction's claim. A claim that was taken over or
// a record that is already gone is left alone.
func (t *Transaction) release(ctx context.Context) error {
	title := t.claimed
	t.claimed = ""

	update := expression.Remove(expression.Name(deletePendingAttr))
	cond := expression.Name(deletePendingAttr).Equal(expression.Value(t.token))
	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return errors.NewTransactionError("build release", err)
	}

	_, err = t.repo.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(t.repo.tableName),
		Key:                       memoryKey(title),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var failed *types.ConditionalCheckFailedException
		if stderrors.As(err, &failed) {
			return nil
		}
		t.repo.logger.Warn("Failed to release delete claim",
			zap.String("title", title),
			zap.Error(err),
		)
		return errors.NewTransactionError("release", err)
	}
	return nil
}

// Commit executes all registered operations atomically. An error that
// leaves the outcome unknown, such as a timeout, is resolved by resending
// the same request: the client request token makes the resend return the
// original result if the first attempt was applied. If the resend is not
// conclusive either, the error is reported as outcome unknown.
func (t *Transaction) Commit(ctx context.Context) error {
	if t.state != txOpen {
		return errors.NewTransactionError("commit", fmt.Errorf("transaction is no longer open"))
	}

	if len(t.items) == 0 {
		t.state = txCommitted
		return nil
	}

	err := t.send(ctx)
	if err != nil && !isCancellation(err) {
		t.repo.logger.Warn("DynamoDB transaction outcome unknown, resending",
			zap.Int("items", len(t.items)),
			zap.Error(err),
		)
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitResendTimeout)
		resendErr := t.send(rctx)
		cancel()

		switch {
		case resendErr == nil:
			err = nil
		case isCancellation(resendErr):
			err = resendErr
		default:
			err = errors.NewTransactionOutcomeUnknownError("commit", resendErr)
		}
	}

	if err != nil {
		t.state = txAborted
		mapped := t.mapCommitError(err)
		t.repo.logger.Warn("DynamoDB transaction failed",
			zap.Int("items", len(t.items)),
			zap.String("errorType", string(errors.TypeOf(mapped))),
			zap.Error(err),
		)
		t.clear()
		return mapped
	}

	t.state = txCommitted
	t.claimed = ""
	t.clear()
	return nil
}

func (t *Transaction) send(ctx context.Context) error {
	_, err := t.repo.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems:      t.items,
		ClientRequestToken: aws.String(t.token),
	})
	return err
}

func isCancellation(err error) bool {
	var canceled *types.TransactionCanceledException
	return stderrors.As(err, &canceled)
}

// Abort discards staged writes and releases a delete claim that did not
// commit. It is idempotent and does nothing after a successful commit.
func (t *Transaction) Abort(ctx context.Context) error {
	if t.state == txOpen {
		t.state = txAborted
		t.clear()
	}
	if t.claimed != "" && t.state != txCommitted {
		return t.release(ctx)
	}
	return nil
}

func (t *Transaction) clear() {
	t.items = nil
}

// mapCommitError turns a cancelled transaction into the error of the staged
// write whose condition failed
func (t *Transaction) mapCommitError(err error) error {
	if errors.IsAppError(err) {
		return err
	}
	var canceled *types.TransactionCanceledException
	if !stderrors.As(err, &canceled) {
		return errors.NewTransactionError("commit", err)
	}

	for i, reason := range canceled.CancellationReasons {
		code := aws.ToString(reason.Code)
		if i >= len(t.staged) {
			break
		}
		s := t.staged[i]

		switch code {
		case "ConditionalCheckFailed":
			switch s.kind {
			case stagedInsert:
				return errors.NewDuplicateKeyError(s.title)
			case stagedAppend:
				// The old item is returned when the record exists but is
				// claimed by a delete
				if len(reason.Item) > 0 {
					return errors.NewConflictError(s.title)
				}
				return errors.NewNotFoundError(s.title)
			case stagedDelete:
				return errors.NewConflictError(s.title)
			}
		case "TransactionConflict":
			return errors.NewConflictError(s.title)
		}
	}

	return errors.NewTransactionError("commit", err)
}
