// Package secure keeps login credentials and the live session token encrypted
// in memory.
//
// Values are sealed into memguard enclaves (XSalsa20Poly1305, mlock'd where the
// platform allows) as soon as configuration is loaded or a login returns a
// token. They are decrypted only for the duration of a backend call:
//
//	token := secure.NewSecureString(resp.Auth.ClientToken)
//	defer token.Destroy()
//
//	plain, err := token.Reveal()
//	if err != nil {
//	    return err
//	}
//	client.SetToken(plain)
//
// This does not protect against an attacker who can read the memory of the
// running process; it keeps secrets out of core dumps and swap.
package secure
