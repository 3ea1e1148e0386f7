package encryption

import "testing"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	enc, key, err := NewEncryptor("")
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}
	if key == "" {
		t.Fatal("expected generated key")
	}

	ciphertext, err := enc.Encrypt("hunter2")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if ciphertext == "hunter2" {
		t.Fatal("ciphertext must not equal plaintext")
	}

	plaintext, err := enc.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if plaintext != "hunter2" {
		t.Errorf("expected hunter2, got %s", plaintext)
	}
}

func TestEncryptorStableKeyRoundTrip(t *testing.T) {
	enc1, key, err := NewEncryptor("")
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}
	ciphertext, err := enc1.Encrypt("my-api-key")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	enc2, _, err := NewEncryptor(key)
	if err != nil {
		t.Fatalf("NewEncryptor with existing key: %v", err)
	}
	plaintext, err := enc2.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if plaintext != "my-api-key" {
		t.Errorf("expected my-api-key, got %s", plaintext)
	}
}

func TestDecryptTamperedCiphertextFails(t *testing.T) {
	enc, _, err := NewEncryptor("")
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}
	ciphertext, err := enc.Encrypt("secret")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	tampered := ciphertext[:len(ciphertext)-2] + "zz"
	if _, err := enc.Decrypt(tampered); err == nil {
		t.Fatal("expected error decrypting tampered ciphertext")
	}
}

func TestPassphraseEncryptorRoundTrip(t *testing.T) {
	enc, err := NewPassphraseEncryptor("correct horse battery staple")
	if err != nil {
		t.Fatalf("NewPassphraseEncryptor: %v", err)
	}

	ciphertext, err := enc.Encrypt("s3cr3t-lastfm-password")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	plaintext, err := enc.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if plaintext != "s3cr3t-lastfm-password" {
		t.Errorf("expected round trip, got %s", plaintext)
	}
}

func TestPassphraseEncryptorWrongPassphraseFails(t *testing.T) {
	enc, _ := NewPassphraseEncryptor("right-passphrase")
	ciphertext, err := enc.Encrypt("topsecret")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	wrong, _ := NewPassphraseEncryptor("wrong-passphrase")
	if _, err := wrong.Decrypt(ciphertext); err == nil {
		t.Fatal("expected decryption failure with wrong passphrase")
	}
}

func TestNewPassphraseEncryptorRejectsEmpty(t *testing.T) {
	if _, err := NewPassphraseEncryptor(""); err == nil {
		t.Fatal("expected error for empty passphrase")
	}
}
