// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Confide Contributors

// Package auth provides authentication primitives for Confide.
//
// # Domain Types
//
// Domain types (User, WebSession) should be created using their
// respective constructors:
//   - NewUser - creates a User with validated email and password hash
//   - NewFederatedUser - creates a User with the federated sentinel hash
//   - NewWebSession - creates a WebSession with validated user and expiry
//
// Direct struct initialization bypasses validation and may create invalid
// state. Repository implementations receive pre-validated types from
// these constructors.
//
// # Services
//
// Service types coordinate domain operations:
//   - Service - local login, registration, logout, session validation
//   - FederatedService - the provider redirect/callback exchange
//
// Services are created with New*Service constructors that validate
// dependencies.
package auth
