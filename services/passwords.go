package services

import (
	"context"
	"fmt"

	"github.com/fanyicharllson/whichemail/model"
	"github.com/fanyicharllson/whichemail/notify"
	"github.com/goliatone/go-errors"
)

// ErrNoCredentialStore is returned by password operations on a Client
// without a credential store.
var ErrNoCredentialStore = errors.New("credential store is not configured", errors.CategoryInternal).
	WithTextCode("NO_CREDENTIAL_STORE")

// SetPassword stores secret for service id and flags the service as having a
// password.
func (c *Client) SetPassword(ctx context.Context, id, secret string) (model.Service, error) {
	const failTitle = "Update Failed"

	ctx, owner := c.owner(ctx)
	if owner == "" {
		return model.Service{}, c.mutationFailed(ctx, failTitle, ErrNotAuthenticated)
	}
	if c.credentials == nil {
		return model.Service{}, c.mutationFailed(ctx, failTitle, ErrNoCredentialStore)
	}
	if secret == "" {
		return model.Service{}, c.mutationFailed(ctx, failTitle,
			errors.New("Password cannot be empty", errors.CategoryValidation).WithTextCode("PASSWORD_REQUIRED"))
	}

	if err := c.credentials.Set(ctx, id, secret); err != nil {
		return model.Service{}, c.mutationFailed(ctx, failTitle, err)
	}
	return c.Update(ctx, id, model.ServicePatch{HasPassword: model.Bool(true)})
}

// RemovePassword deletes the stored password of service id and clears its
// flag.
func (c *Client) RemovePassword(ctx context.Context, id string) (model.Service, error) {
	const failTitle = "Update Failed"

	ctx, owner := c.owner(ctx)
	if owner == "" {
		return model.Service{}, c.mutationFailed(ctx, failTitle, ErrNotAuthenticated)
	}
	if c.credentials == nil {
		return model.Service{}, c.mutationFailed(ctx, failTitle, ErrNoCredentialStore)
	}

	if err := c.credentials.Delete(ctx, id); err != nil && !errors.IsNotFound(err) {
		return model.Service{}, c.mutationFailed(ctx, failTitle, err)
	}
	return c.Update(ctx, id, model.ServicePatch{HasPassword: model.Bool(false)})
}

// DeleteAllPasswords removes every stored password of the signed in user and
// clears the flag on each service that had one. It returns how many
// passwords were deleted.
func (c *Client) DeleteAllPasswords(ctx context.Context) (int, error) {
	const failTitle = "Delete Failed"
	const failMessage = "Failed to delete some passwords. Please try again."

	ctx, owner := c.owner(ctx)
	if owner == "" {
		return 0, c.mutationFailed(ctx, failTitle, ErrNotAuthenticated)
	}
	if c.credentials == nil {
		return 0, c.mutationFailed(ctx, failTitle, ErrNoCredentialStore)
	}

	list, err := c.queries.FetchList(ctx, owner)
	if err != nil {
		return 0, err
	}

	var ids []string
	for _, s := range list {
		if s.HasPassword {
			ids = append(ids, s.ID)
		}
	}
	if len(ids) == 0 {
		notify.Info(ctx, c.notifier, "No Passwords", "There are no saved passwords to delete")
		return 0, nil
	}

	deleted, err := c.credentials.DeleteMany(ctx, ids)
	if err != nil {
		c.opts.logger.Error("delete passwords failed", "owner_id", owner, "error", err)
		notify.Error(ctx, c.notifier, failTitle, failMessage)
		return deleted, err
	}

	var failed []error
	for _, id := range ids {
		if _, err := c.update(ctx, id, model.ServicePatch{HasPassword: model.Bool(false)}); err != nil {
			failed = append(failed, fmt.Errorf("service %s: %w", id, err))
		}
	}
	if len(failed) > 0 {
		err := errors.Join(failed...)
		c.opts.logger.Error("clear password flags failed", "owner_id", owner, "failed", len(failed), "error", err)
		notify.Error(ctx, c.notifier, failTitle, failMessage)
		return deleted, err
	}

	notify.Success(ctx, c.notifier, "All Passwords Deleted",
		fmt.Sprintf("Successfully deleted %d password(s)", deleted))
	return deleted, nil
}
