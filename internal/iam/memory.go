package iam

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// Memory is an in-process fake permission service. Tests exercise the
// workflow against it, and cmd/api falls back to it when no external
// service is configured.
type Memory struct {
	mu    sync.Mutex
	roles map[string]*memRole
}

type memRole struct {
	arn         string
	description string
	policies    []string
}

var _ Client = (*Memory)(nil)

// NewMemory creates an empty fake permission service.
func NewMemory() *Memory {
	return &Memory{roles: make(map[string]*memRole)}
}

func (m *Memory) ListAttachedPolicies(ctx context.Context, roleName string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	role, ok := m.roles[roleName]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(role.policies), nil
}

func (m *Memory) CreateRole(ctx context.Context, name, description string) (Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[name]; ok {
		return Role{}, ErrAlreadyExists
	}
	arn := "arn:mem:iam::role/" + name
	m.roles[name] = &memRole{arn: arn, description: description}
	return Role{Name: name, ARN: arn}, nil
}

func (m *Memory) AttachPolicy(ctx context.Context, roleName, policyARN string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	role, ok := m.roles[roleName]
	if !ok {
		return ErrNotFound
	}
	if !slices.Contains(role.policies, policyARN) {
		role.policies = append(role.policies, policyARN)
	}
	return nil
}

func (m *Memory) DetachPolicy(ctx context.Context, roleName, policyARN string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	role, ok := m.roles[roleName]
	if !ok {
		return ErrNotFound
	}
	i := slices.Index(role.policies, policyARN)
	if i < 0 {
		return ErrNotFound
	}
	role.policies = slices.Delete(role.policies, i, i+1)
	return nil
}

// DeleteRole refuses to delete a role that still has policies attached,
// matching the real service: callers must detach first.
func (m *Memory) DeleteRole(ctx context.Context, roleName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	role, ok := m.roles[roleName]
	if !ok {
		return ErrNotFound
	}
	if len(role.policies) > 0 {
		return errors.New("iam: role has attached policies")
	}
	delete(m.roles, roleName)
	return nil
}

// HasRole reports whether a role exists. Test helper.
func (m *Memory) HasRole(roleName string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.roles[roleName]
	return ok
}
