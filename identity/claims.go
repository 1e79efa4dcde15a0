// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package identity

// Claim is a type/value pair asserting an attribute of a user or role.
// Two claims are equal when both type and value match.
type Claim struct {
	Type  string `bson:"type" json:"type"`
	Value string `bson:"value" json:"value"`
}

// Login binds a user to an external sign-in provider. The
// (Provider, ProviderKey) pair is unique within a user.
type Login struct {
	Provider    string `bson:"provider" json:"provider"`
	ProviderKey string `bson:"provider_key" json:"provider_key"`
	DisplayName string `bson:"display_name,omitempty" json:"display_name,omitempty"`
}

// Token is an opaque named value attached to a user, keyed by
// (Provider, Name). Setting an existing pair replaces the value.
type Token struct {
	Provider string `bson:"provider" json:"provider"`
	Name     string `bson:"name" json:"name"`
	Value    string `bson:"value" json:"value"`
}

func addClaim(claims *[]Claim, c Claim) bool {
	for _, existing := range *claims {
		if existing == c {
			return false
		}
	}
	*claims = append(*claims, c)
	return true
}

func removeClaim(claims *[]Claim, c Claim) int {
	kept := (*claims)[:0]
	removed := 0
	for _, existing := range *claims {
		if existing == c {
			removed++
			continue
		}
		kept = append(kept, existing)
	}
	*claims = kept
	return removed
}

func replaceClaim(claims *[]Claim, orig, repl Claim) bool {
	if removeClaim(claims, orig) == 0 {
		return false
	}
	addClaim(claims, repl)
	return true
}

func claimSnapshot(claims []Claim) []Claim {
	out := make([]Claim, len(claims))
	copy(out, claims)
	return out
}
