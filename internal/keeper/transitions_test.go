/*
Copyright pg-auto-ha Contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package keeper

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/pg-auto-ha/pgautoctl/internal/fsm"
	"github.com/pg-auto-ha/pgautoctl/internal/monitor"
	"github.com/pg-auto-ha/pgautoctl/internal/monitor/api"
	"github.com/pg-auto-ha/pgautoctl/internal/pg"
)

// newTestKeeper builds a Keeper wired against a real monitor orchestrator
// reached over an httptest server, the same harness internal/monitor's own
// tests use, so initStandby/rewindOrRebuild/reconcileReplicationConfig
// exercise the real register/get_primary/get_other_nodes wire round-trip
// instead of a hand-rolled fake. It has no Postgres underneath it: PgData
// is an empty temp directory, so any procedure that gets as far as
// actually running pg_ctl/initdb is expected to fail, which the tests
// below only assert of the transitions where that failure is itself the
// behavior under test.
func newTestKeeper(t GinkgoTInterface) (*Keeper, *monitor.Orchestrator) {
	orch := monitor.NewOrchestrator(monitor.NewMemStore(), monitor.DefaultConfig())
	srv := httptest.NewServer(api.NewServer(orch))
	DeferCleanup(srv.Close)

	pgData := t.TempDir()
	k := &Keeper{
		cfg: Config{
			Formation:       "default",
			NodeName:        "node-a",
			ReplicationUser: "replicator",
		},
		instance: &pg.Instance{PgData: pgData},
		monitor:  api.NewClient(srv.URL, srv.Client()),
	}

	// Register for real, the way Keeper.Register does, so this node's
	// NodeID/GroupID are ones the orchestrator actually knows about:
	// GetOtherNodes looks the caller's own node up by ID before listing its
	// siblings, so an unregistered NodeID would fail before ever reaching
	// the logic under test.
	resp, err := k.monitor.Register(context.Background(), api.RegisterRequest{
		Formation: k.cfg.Formation, Host: "a", Port: 5432, Name: k.cfg.NodeName,
	})
	Expect(err).ToNot(HaveOccurred())
	k.state = State{
		NodeID:    resp.NodeID,
		GroupID:   resp.GroupID,
		Formation: k.cfg.Formation,
	}
	return k, orch
}

var _ = Describe("executeTransition", func() {
	var (
		ctx context.Context
		k   *Keeper
	)

	BeforeEach(func() {
		ctx = context.Background()
		k, _ = newTestKeeper(GinkgoT())
	})

	It("refuses a pair absent from the transition table", func() {
		err := k.executeTransition(ctx, fsm.Single, fsm.FastForward, api.HeartbeatResponse{})
		Expect(err).To(MatchError(ContainSubstring("no known procedure")))
	})

	It("runs the noop procedure without touching the instance", func() {
		err := k.executeTransition(ctx, fsm.WaitStandby, fsm.WaitStandby, api.HeartbeatResponse{})
		Expect(err).ToNot(HaveOccurred())
	})

	It("refuses fast-forward when the monitor named no rewind source", func() {
		err := k.executeTransition(ctx, fsm.ReportLSN, fsm.FastForward, api.HeartbeatResponse{FastForwardFrom: nil})
		Expect(err).To(MatchError(ContainSubstring("without naming a node to rewind from")))
	})
})

var _ = Describe("initStandby and rewindOrRebuild", func() {
	var (
		ctx context.Context
		k   *Keeper
	)

	BeforeEach(func() {
		ctx = context.Background()
		k, _ = newTestKeeper(GinkgoT())
	})

	It("initStandby refuses to clone before any primary is registered", func() {
		err := k.initStandby(ctx)
		Expect(err).To(MatchError(ContainSubstring("no primary registered yet")))
	})

	It("rewindOrRebuild refuses to rewind before any primary is registered", func() {
		err := k.rewindOrRebuild(ctx)
		Expect(err).To(MatchError(ContainSubstring("no primary registered yet")))
	})
})

var _ = Describe("fastForward", func() {
	var (
		ctx context.Context
		k   *Keeper
	)

	BeforeEach(func() {
		ctx = context.Background()
		k, _ = newTestKeeper(GinkgoT())
	})

	It("refuses a nil target instead of guessing the primary", func() {
		err := k.fastForward(ctx, nil)
		Expect(err).To(MatchError(ContainSubstring("without naming a node to rewind from")))
	})

	It("targets the named node rather than calling get_primary", func() {
		// With no pg_rewind/pg_basebackup binary reachable, rewindOrCloneFrom
		// fails deep inside the clone attempt rather than with the
		// "no primary registered" error initStandby/rewindOrRebuild would
		// raise — proving fastForward never consulted get_primary at all.
		err := k.fastForward(ctx, &api.NodeAddress{Host: "standby-b", Port: 5432})
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).ToNot(ContainSubstring("no primary registered"))
	})
})

var _ = Describe("initPrimary", func() {
	It("bootstraps as far as initdb and stops there without one installed", func() {
		k, _ := newTestKeeper(GinkgoT())
		err := k.initPrimary(context.Background())
		Expect(err).To(MatchError(ContainSubstring("running initdb")))
	})
})

var _ = Describe("reconcileReplicationSlots", func() {
	It("fails against a data directory with no live Postgres behind it", func() {
		// There is no Postgres process to connect to in this environment,
		// so this only exercises that the call reaches an actual
		// connection attempt and fails cleanly rather than panicking or
		// silently doing nothing.
		k, _ := newTestKeeper(GinkgoT())
		err := k.reconcileReplicationSlots(context.Background(), []string{"node-b"})
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("promote", func() {
	It("propagates a failed pg_ctl promote instead of lifting the read-only gate anyway", func() {
		k, _ := newTestKeeper(GinkgoT())
		err := k.promote(context.Background())
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("promoting postgres"))
	})
})

var _ = Describe("reconcileReplicationConfig", func() {
	var (
		ctx context.Context
		k   *Keeper
	)

	BeforeEach(func() {
		ctx = context.Background()
		k, _ = newTestKeeper(GinkgoT())
	})

	It("fails to rewrite pg_hba.conf when the data directory has none yet", func() {
		err := k.reconcileReplicationConfig(ctx)
		Expect(err).To(MatchError(ContainSubstring("pg_hba.conf")))
	})

	It("picks up every sibling the monitor currently knows about", func() {
		// Register a second node in the same group so GetOtherNodes returns
		// one sibling, then let pg_hba.conf rewriting fail as above; what
		// this proves is that reconcileReplicationConfig actually reaches
		// the monitor and enumerates the group rather than e.g. silently
		// treating an empty slice as "no siblings".
		_, err := k.monitor.Register(ctx, api.RegisterRequest{
			Formation: "default", GroupID: &k.state.GroupID, Host: "b", Port: 5432, Name: "node-b",
		})
		Expect(err).ToNot(HaveOccurred())

		err = k.reconcileReplicationConfig(ctx)
		Expect(err).To(MatchError(ContainSubstring("pg_hba.conf")))
	})
})

var _ = Describe("ensureReplicationPassword", func() {
	var (
		k       *Keeper
		tempDir string
	)

	BeforeEach(func() {
		tempDir = GinkgoT().TempDir()
		k, _ = newTestKeeper(GinkgoT())
	})

	It("does nothing when no password file was configured", func() {
		Expect(k.ensureReplicationPassword()).To(Succeed())
		Expect(k.cfg.ReplicationPassword).To(BeEmpty())
	})

	It("does nothing when a password was already supplied", func() {
		k.cfg.ReplicationPassword = "already-set"
		k.cfg.ReplicationPasswordFile = filepath.Join(tempDir, "unused.pass")
		Expect(k.ensureReplicationPassword()).To(Succeed())
		Expect(k.cfg.ReplicationPassword).To(Equal("already-set"))
		_, err := os.Stat(k.cfg.ReplicationPasswordFile)
		Expect(os.IsNotExist(err)).To(BeTrue())
	})

	It("generates and persists a password the first time one is needed", func() {
		passFile := filepath.Join(tempDir, "replication.pass")
		k.cfg.ReplicationPasswordFile = passFile

		Expect(k.ensureReplicationPassword()).To(Succeed())
		Expect(k.cfg.ReplicationPassword).ToNot(BeEmpty())

		contents, err := os.ReadFile(passFile)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(contents)).To(Equal(k.cfg.ReplicationPassword + "\n"))
	})
})

var _ = Describe("ensureSelfSignedCertificates", func() {
	var (
		k      *Keeper
		pkiDir string
	)

	BeforeEach(func() {
		pkiDir = GinkgoT().TempDir()
		k, _ = newTestKeeper(GinkgoT())
		k.cfg.SSLSelfSigned = true
		k.cfg.PKIDir = pkiDir
		k.cfg.Host = "node-a.example"
	})

	It("does nothing when self-signed certs are not requested", func() {
		k.cfg.SSLSelfSigned = false
		Expect(k.ensureSelfSignedCertificates()).To(Succeed())
		entries, err := os.ReadDir(pkiDir)
		Expect(err).ToNot(HaveOccurred())
		Expect(entries).To(BeEmpty())
	})

	It("creates a CA and a leaf certificate under PKIDir", func() {
		Expect(k.ensureSelfSignedCertificates()).To(Succeed())
		for _, name := range []string{"ca.crt", "ca.key", "server.crt", "server.key"} {
			_, err := os.Stat(filepath.Join(pkiDir, name))
			Expect(err).ToNot(HaveOccurred(), "expected %s to exist", name)
		}
	})

	It("leaves an existing CA alone on a second call", func() {
		Expect(k.ensureSelfSignedCertificates()).To(Succeed())
		ca, err := os.ReadFile(filepath.Join(pkiDir, "ca.crt"))
		Expect(err).ToNot(HaveOccurred())

		Expect(k.ensureSelfSignedCertificates()).To(Succeed())
		caAgain, err := os.ReadFile(filepath.Join(pkiDir, "ca.crt"))
		Expect(err).ToNot(HaveOccurred())
		Expect(caAgain).To(Equal(ca))
	})
})
