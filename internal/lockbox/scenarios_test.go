package lockbox_test

import (
	"io"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"lockbox/internal/lockbox"
	"lockbox/internal/testutil"
)

var _ = Describe("File sharing", func() {
	var (
		env *testutil.Env
		svc *lockbox.FileService
	)

	BeforeEach(func() {
		env = testutil.NewTestEnv(GinkgoT())
		env.MustRegister(GinkgoT(), "alice", "bob")
		svc = env.Service
	})

	Describe("a single owner", func() {
		Specify("uploads, lists and reads back a file", func() {
			record, err := svc.Upload("alice", "notes.txt", []byte("hello"))
			Expect(err).ToNot(HaveOccurred())

			files, err := svc.ListFiles("alice")
			Expect(err).ToNot(HaveOccurred())
			Expect(files).To(HaveLen(1))
			Expect(files[0].Name).To(Equal("notes.txt"))
			Expect(files[0].Size).To(BeEquivalentTo(5))

			content, err := svc.Read("alice", record.ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(string(content)).To(Equal("hello"))
		})

		Specify("cannot be seen by other users", func() {
			record, err := svc.Upload("alice", "notes.txt", []byte("hello"))
			Expect(err).ToNot(HaveOccurred())

			files, err := svc.ListFiles("bob")
			Expect(err).ToNot(HaveOccurred())
			Expect(files).To(BeEmpty())

			_, err = svc.Read("bob", record.ID)
			Expect(err).To(MatchError(lockbox.ErrAuthorizationDenied))
		})
	})

	Describe("sharing", func() {
		var record *lockbox.FileRecord

		BeforeEach(func() {
			var err error
			record, err = svc.Upload("alice", "notes.txt", []byte("hello"))
			Expect(err).ToNot(HaveOccurred())
		})

		Specify("a read grant allows reading but not writing", func() {
			_, err := svc.Share("alice", record.ID, "bob", lockbox.ModeRead)
			Expect(err).ToNot(HaveOccurred())

			files, err := svc.ListFiles("bob")
			Expect(err).ToNot(HaveOccurred())
			Expect(files).To(HaveLen(1))

			content, err := svc.Read("bob", record.ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(string(content)).To(Equal("hello"))

			_, err = svc.Write("bob", record.ID, []byte("changed"))
			Expect(err).To(MatchError(lockbox.ErrAuthorizationDenied))

			content, err = svc.Read("alice", record.ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(string(content)).To(Equal("hello"))
		})

		Specify("a write grant lets the grantee edit but not delete", func() {
			_, err := svc.Share("alice", record.ID, "bob", lockbox.ModeWrite)
			Expect(err).ToNot(HaveOccurred())

			_, err = svc.Write("bob", record.ID, []byte("bob was here"))
			Expect(err).ToNot(HaveOccurred())

			content, err := svc.Read("alice", record.ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(string(content)).To(Equal("bob was here"))

			Expect(svc.Delete("bob", record.ID)).To(MatchError(lockbox.ErrAuthorizationDenied))
			Expect(svc.Delete("alice", record.ID)).To(Succeed())

			_, err = svc.Read("bob", record.ID)
			Expect(err).To(MatchError(lockbox.ErrNotFound))
		})

		Specify("the grantee can download a plaintext copy", func() {
			_, err := svc.Share("alice", record.ID, "bob", lockbox.ModeRead)
			Expect(err).ToNot(HaveOccurred())

			err = svc.Download("bob", record.ID, func(a lockbox.Artifact) error {
				data, err := io.ReadAll(a)
				Expect(err).ToNot(HaveOccurred())
				Expect(string(data)).To(Equal("hello"))
				return nil
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(env.Staging.Size()).To(BeZero())
		})
	})

	Describe("upload screening", func() {
		Specify("rejects executables and records the attempt", func() {
			_, err := svc.Upload("alice", "payload.exe", []byte("hello"))
			Expect(err).To(MatchError(lockbox.ErrValidationRejected))

			files, err := svc.ListFiles("alice")
			Expect(err).ToNot(HaveOccurred())
			Expect(files).To(BeEmpty())

			events, err := svc.Events("alice")
			Expect(err).ToNot(HaveOccurred())
			Expect(events).ToNot(BeEmpty())
			last := events[len(events)-1]
			Expect(last.Kind).To(Equal(lockbox.EventUploadBlocked))
			Expect(last.User).To(Equal("alice"))
		})

		Specify("rejects text files carrying a signature", func() {
			_, err := svc.Upload("alice", "notes.txt", []byte("contains MALWARE marker"))
			Expect(err).To(MatchError(lockbox.ErrValidationRejected))
			Expect(env.Vault.Len()).To(BeZero())
		})
	})
})
