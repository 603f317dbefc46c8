package db

import (
	"context"
	"fmt"
)

// Friend mutations run as one transaction touching both the account and the
// honeytrap table. The account document is the source of truth for the
// guard; UPDATE on a missing honeytrap record (real users) is a no-op.

const addFriendRequestSQL = `
	BEGIN TRANSACTION;
	IF array::len((SELECT VALUE id FROM type::record("account", $sender))) = 0 {
		THROW "account not found: " + $sender;
	};
	IF array::len((SELECT VALUE id FROM type::record("account", $target))) = 0 {
		THROW "account not found: " + $target;
	};
	LET $acc = (UPDATE type::record("account", $target)
		SET friend_requests = array::union(friend_requests, [$sender])
		WHERE $sender NOTINSIDE friends AND $sender NOTINSIDE friend_requests
		RETURN AFTER);
	LET $changed = array::len($acc) > 0;
	IF $changed {
		UPDATE type::record("honeytrap", $target) SET friend_requests = array::union(friend_requests, [$sender]);
	};
	RETURN $changed;
	COMMIT TRANSACTION;
`

const pullFriendRequestSQL = `
	BEGIN TRANSACTION;
	IF array::len((SELECT VALUE id FROM type::record("account", $owner))) = 0 {
		THROW "account not found: " + $owner;
	};
	LET $acc = (UPDATE type::record("account", $owner)
		SET friend_requests -= $requester
		WHERE $requester INSIDE friend_requests
		RETURN AFTER);
	LET $changed = array::len($acc) > 0;
	IF $changed {
		UPDATE type::record("honeytrap", $owner) SET friend_requests -= $requester;
	};
	RETURN $changed;
	COMMIT TRANSACTION;
`

const acceptFriendRequestSQL = `
	BEGIN TRANSACTION;
	IF array::len((SELECT VALUE id FROM type::record("account", $user))) = 0 {
		THROW "account not found: " + $user;
	};
	IF array::len((SELECT VALUE id FROM type::record("account", $friend))) = 0 {
		THROW "account not found: " + $friend;
	};
	LET $acc = (UPDATE type::record("account", $user)
		SET friend_requests -= $friend, friends = array::union(friends, [$friend])
		WHERE $friend INSIDE friend_requests
		RETURN AFTER);
	LET $changed = array::len($acc) > 0;
	IF $changed {
		UPDATE type::record("honeytrap", $user) SET friend_requests -= $friend, friends = array::union(friends, [$friend]);
		UPDATE type::record("account", $friend) SET friend_requests -= $user, friends = array::union(friends, [$user]);
		UPDATE type::record("honeytrap", $friend) SET friend_requests -= $user, friends = array::union(friends, [$user]);
	};
	RETURN $changed;
	COMMIT TRANSACTION;
`

func (c *Client) AddFriendRequest(ctx context.Context, sender, target string) (bool, error) {
	return c.friendTx(ctx, "add friend request", addFriendRequestSQL, map[string]any{
		"sender": sender,
		"target": target,
	})
}

func (c *Client) WithdrawFriendRequest(ctx context.Context, sender, target string) (bool, error) {
	return c.friendTx(ctx, "withdraw friend request", pullFriendRequestSQL, map[string]any{
		"owner":     target,
		"requester": sender,
	})
}

func (c *Client) RejectFriendRequest(ctx context.Context, user, friend string) (bool, error) {
	return c.friendTx(ctx, "reject friend request", pullFriendRequestSQL, map[string]any{
		"owner":     user,
		"requester": friend,
	})
}

func (c *Client) AcceptFriendRequest(ctx context.Context, user, friend string) (bool, error) {
	return c.friendTx(ctx, "accept friend request", acceptFriendRequestSQL, map[string]any{
		"user":   user,
		"friend": friend,
	})
}

func (c *Client) friendTx(ctx context.Context, op, sql string, vars map[string]any) (bool, error) {
	res, err := query[any](ctx, c, sql, vars)
	if err != nil {
		return false, storeErr(op, err)
	}
	changed, ok := last(res).(bool)
	if !ok {
		return false, storeErr(op, fmt.Errorf("unexpected result %T", last(res)))
	}
	return changed, nil
}
