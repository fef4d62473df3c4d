// Package testutil provides stub agents and CSV fixtures for tests.
package testutil

import (
	"context"
	"sync"

	"github.com/csv-chat/backend/internal/agent"
	"github.com/csv-chat/backend/internal/models"
)

// Fixtures used across package tests.
const (
	SalesCSV  = "Region,Sales,Year\nNorth,100,2023\nSouth,250,2023\nEast,75,2022\n"
	PolicyCSV = "Policy,Category\nReturns accepted within 30 days,Returns\nShipping is free over $50,Shipping\n"
	BrokenCSV = "a,b\n1,2,3\n"
)

// File builds an uploaded file from text.
func File(name, data string) models.UploadedFile {
	return models.UploadedFile{Name: name, Data: []byte(data)}
}

// RunFunc is the behaviour of a stub agent.
type RunFunc func(ctx context.Context, request string, tables agent.TableSource) (string, error)

// StubFactory implements agent.Factory and records every call.
type StubFactory struct {
	mu          sync.Mutex
	Run         RunFunc
	NewErr      error
	Credentials []string
	Requests    []string
}

// NewStubFactory returns a factory whose agents run fn.
func NewStubFactory(fn RunFunc) *StubFactory {
	return &StubFactory{Run: fn}
}

func (f *StubFactory) New(_ context.Context, credential string, tables agent.TableSource) (agent.Agent, error) {
	f.mu.Lock()
	f.Credentials = append(f.Credentials, credential)
	f.mu.Unlock()
	if f.NewErr != nil {
		return nil, f.NewErr
	}

	return agent.FuncAgent(func(ctx context.Context, request string) (string, error) {
		f.mu.Lock()
		f.Requests = append(f.Requests, request)
		f.mu.Unlock()
		if f.Run == nil {
			return "ok", nil
		}
		return f.Run(ctx, request, tables)
	}), nil
}

// Calls returns how many agents were built.
func (f *StubFactory) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Credentials)
}

// LastRequest returns the most recent request an agent received.
func (f *StubFactory) LastRequest() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Requests) == 0 {
		return ""
	}
	return f.Requests[len(f.Requests)-1]
}
