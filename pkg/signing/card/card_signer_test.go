// Copyright 2025 The Sigstore Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package card

import (
	"context"
	"testing"

	"github.com/clinisign/padesflow/pkg/cardsession"
)

type staticDescriptor struct{}

func (staticDescriptor) DCParameter(_ context.Context) (string, error) {
	return "dc-value", nil
}

func newSessionClient(t *testing.T) *cardsession.Client {
	t.Helper()
	client, err := cardsession.NewClient(cardsession.ClientOptions{
		MiddlewareURL: "http://localhost:9982",
		Descriptor:    staticDescriptor{},
	})
	if err != nil {
		t.Fatalf("cardsession.NewClient() error = %v", err)
	}
	return client
}

func TestNewSigner_EnforcesCredentialPredicate(t *testing.T) {
	session := newSessionClient(t)

	tests := []struct {
		name   string
		reader string
		pin    string
		ok     bool
	}{
		{"complete", "Gemalto Reader 0", "1234", true},
		{"pin too short", "Gemalto Reader 0", "123", false},
		{"no reader", "", "1234", false},
		{"nothing", "", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewSigner(SignerOptions{Session: session, Reader: tc.reader, PIN: tc.pin})
			if tc.ok && err != nil {
				t.Errorf("NewSigner() error = %v, want nil", err)
			}
			if !tc.ok && err == nil {
				t.Errorf("NewSigner() accepted incomplete credentials")
			}
		})
	}
}

func TestCardInfo_NilBeforeFirstRead(t *testing.T) {
	signer, err := NewSigner(SignerOptions{Session: newSessionClient(t), Reader: "Gemalto Reader 0", PIN: "1234"})
	if err != nil {
		t.Fatalf("NewSigner() error = %v", err)
	}
	if signer.CardInfo() != nil {
		t.Error("CardInfo() non-nil before any read")
	}
}
